package services

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/logging"
	"github.com/dmitrijs2005/memberkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
	"github.com/dmitrijs2005/memberkeeper/internal/server/repositories/users"
)

var orphanedBlobs = promauto.NewCounter(prometheus.CounterOpts{
	Name: "profile_image_orphaned_blobs_total",
	Help: "Profile image blobs left in storage after a failed best-effort delete",
})

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

const defaultCleanupTimeout = 30 * time.Second

// MediaConfig controls where images go and how large they may be.
type MediaConfig struct {
	Folder         string
	MaxBytes       int64
	CleanupTimeout time.Duration
}

// MediaService manages users' profile images.
type MediaService struct {
	repo  users.Repository
	blobs blobstore.BlobStore
	log   logging.Logger
	cfg   MediaConfig

	wg sync.WaitGroup
}

func NewMediaService(repo users.Repository, blobs blobstore.BlobStore, log logging.Logger, cfg MediaConfig) *MediaService {
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = defaultCleanupTimeout
	}
	return &MediaService{repo: repo, blobs: blobs, log: log, cfg: cfg}
}

// ReplaceImage stores data as the user's new profile image and returns its
// URL. The new blob is uploaded before the user's pointer moves, and the
// replaced blob is deleted in the background only after the pointer moved.
// If the upload fails the user's current image is untouched.
func (s *MediaService) ReplaceImage(ctx context.Context, userID string, data []byte) (string, error) {
	contentType, err := s.validateImage(data)
	if err != nil {
		return "", err
	}

	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return "", err
	}

	obj, err := s.blobs.Upload(ctx, data, path.Join(s.cfg.Folder, userID), contentType)
	if err != nil {
		s.log.Error(ctx, "profile image upload failed", "user_id", userID, "error", err)
		return "", fmt.Errorf("%w: %v", common.ErrUploadFailed, err)
	}

	// previous is what this swap replaced, read under the same lock.
	previous, err := s.repo.SwapProfileImage(ctx, userID, &models.ProfileImage{URL: obj.URL, ExternalID: obj.ExternalID})
	if err != nil {
		s.cleanup(ctx, userID, obj.ExternalID)
		return "", err
	}

	if previous != nil && previous.ExternalID != "" && previous.ExternalID != obj.ExternalID {
		s.cleanup(ctx, userID, previous.ExternalID)
	}

	s.log.Info(ctx, "profile image replaced", "user_id", userID, "external_id", obj.ExternalID)
	return obj.URL, nil
}

func (s *MediaService) validateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", common.ErrorValidation)
	}
	if s.cfg.MaxBytes > 0 && int64(len(data)) > s.cfg.MaxBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", common.ErrorValidation, s.cfg.MaxBytes)
	}

	contentType := http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		return "", fmt.Errorf("%w: unsupported image type %s", common.ErrorValidation, contentType)
	}
	return contentType, nil
}

// cleanup deletes externalID in the background. Failures are logged and
// counted; they never reach the caller.
func (s *MediaService) cleanup(ctx context.Context, userID, externalID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CleanupTimeout)
		defer cancel()

		if err := s.blobs.Delete(ctx, externalID); err != nil {
			orphanedBlobs.Inc()
			s.log.Warn(ctx, "profile image blob not deleted", "user_id", userID, "external_id", externalID, "error", err)
			return
		}
		s.log.Debug(ctx, "profile image blob deleted", "user_id", userID, "external_id", externalID)
	}()
}

// Wait blocks until every pending background delete has finished.
func (s *MediaService) Wait() {
	s.wg.Wait()
}
