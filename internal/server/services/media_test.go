package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/logging"
	"github.com/dmitrijs2005/memberkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
	"github.com/dmitrijs2005/memberkeeper/internal/server/repositories/users"
)

var (
	pngImage = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	gifImage = append([]byte("GIF89a"), bytes.Repeat([]byte{0}, 64)...)
)

type mediaFixture struct {
	repo  users.Repository
	blobs *blobstore.MemoryStore
	svc   *MediaService
	user  *models.User
}

func newMediaFixture(t *testing.T, repo users.Repository) *mediaFixture {
	t.Helper()
	if repo == nil {
		repo = users.NewMemoryRepository()
	}
	u, err := repo.Create(context.Background(), &models.User{Email: "ada@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	blobs := blobstore.NewMemoryStore("http://blobs.local/avatars")
	svc := NewMediaService(repo, blobs, logging.Nop{}, MediaConfig{Folder: "avatars", MaxBytes: 1024})
	t.Cleanup(svc.Wait)

	return &mediaFixture{repo: repo, blobs: blobs, svc: svc, user: u}
}

func (f *mediaFixture) image(t *testing.T) *models.ProfileImage {
	t.Helper()
	u, err := f.repo.GetByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	return u.Image
}

func TestReplaceImage_First(t *testing.T) {
	f := newMediaFixture(t, nil)

	url, err := f.svc.ReplaceImage(context.Background(), f.user.ID, pngImage)
	require.NoError(t, err)
	f.svc.Wait()

	img := f.image(t)
	require.NotNil(t, img)
	assert.Equal(t, url, img.URL)
	assert.True(t, f.blobs.Has(img.ExternalID))
	assert.Contains(t, img.ExternalID, "avatars/"+f.user.ID+"/")
	assert.Empty(t, f.blobs.Deleted())
}

func TestReplaceImage_DeletesSupersededBlob(t *testing.T) {
	f := newMediaFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.ReplaceImage(ctx, f.user.ID, pngImage)
	require.NoError(t, err)
	first := f.image(t)

	_, err = f.svc.ReplaceImage(ctx, f.user.ID, gifImage)
	require.NoError(t, err)
	f.svc.Wait()

	second := f.image(t)
	assert.NotEqual(t, first.ExternalID, second.ExternalID)
	assert.False(t, f.blobs.Has(first.ExternalID))
	assert.True(t, f.blobs.Has(second.ExternalID))
	assert.Equal(t, []string{first.ExternalID}, f.blobs.Deleted())
}

func TestReplaceImage_UploadFailureKeepsCurrentImage(t *testing.T) {
	f := newMediaFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.ReplaceImage(ctx, f.user.ID, pngImage)
	require.NoError(t, err)
	before := f.image(t)

	f.blobs.FailUploads(blobstore.ErrInjected)
	_, err = f.svc.ReplaceImage(ctx, f.user.ID, gifImage)
	require.ErrorIs(t, err, common.ErrUploadFailed)
	f.svc.Wait()

	assert.Equal(t, before, f.image(t))
	assert.True(t, f.blobs.Has(before.ExternalID))
	assert.Empty(t, f.blobs.Deleted())
}

func TestReplaceImage_DeleteFailureIsNotReported(t *testing.T) {
	f := newMediaFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.ReplaceImage(ctx, f.user.ID, pngImage)
	require.NoError(t, err)
	first := f.image(t)

	orphansBefore := testutil.ToFloat64(orphanedBlobs)
	f.blobs.FailDeletes(blobstore.ErrInjected)

	url, err := f.svc.ReplaceImage(ctx, f.user.ID, gifImage)
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, url, f.image(t).URL)
	assert.True(t, f.blobs.Has(first.ExternalID), "orphan stays in storage")
	assert.Equal(t, orphansBefore+1, testutil.ToFloat64(orphanedBlobs))
}

func TestReplaceImage_SwapFailureRemovesNewBlob(t *testing.T) {
	mem := users.NewMemoryRepository()
	repo := &flakyRepo{Repository: mem}
	f := newMediaFixture(t, repo)
	ctx := context.Background()

	_, err := f.svc.ReplaceImage(ctx, f.user.ID, pngImage)
	require.NoError(t, err)
	before := f.image(t)

	repo.swapErr = errors.New("db down")
	_, err = f.svc.ReplaceImage(ctx, f.user.ID, gifImage)
	require.Error(t, err)
	f.svc.Wait()

	assert.Equal(t, before, f.image(t))
	assert.Equal(t, 1, f.blobs.Len(), "only the current image remains")
	assert.True(t, f.blobs.Has(before.ExternalID))
}

func TestReplaceImage_UnknownUser(t *testing.T) {
	f := newMediaFixture(t, nil)

	_, err := f.svc.ReplaceImage(context.Background(), "missing", pngImage)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Zero(t, f.blobs.Len(), "nothing uploaded for an unknown user")
}

func TestReplaceImage_Validation(t *testing.T) {
	f := newMediaFixture(t, nil)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too large", append(append([]byte(nil), pngImage...), make([]byte, 2048)...)},
		{"not an image", []byte("just some text, not a picture")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ReplaceImage(context.Background(), f.user.ID, tt.data)
			assert.ErrorIs(t, err, common.ErrorValidation)
			assert.Zero(t, f.blobs.Len())
		})
	}
}

func TestReplaceImage_ConcurrentReplacesKeepFinalBlob(t *testing.T) {
	f := newMediaFixture(t, nil)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ReplaceImage(ctx, f.user.ID, pngImage)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	f.svc.Wait()

	final := f.image(t)
	require.NotNil(t, final)
	assert.True(t, f.blobs.Has(final.ExternalID))
	assert.NotContains(t, f.blobs.Deleted(), final.ExternalID)
	assert.Len(t, f.blobs.Deleted(), n-1)
	assert.Equal(t, 1, f.blobs.Len())
}
