// Package blobstore stores profile images in object storage.
package blobstore

import "context"

// Object identifies a stored blob. URL is public; ExternalID is the handle
// Delete takes.
type Object struct {
	URL        string
	ExternalID string
}

// BlobStore is an external object store. Implementations make no
// transactional promises: a failed Upload leaves nothing behind, but
// Delete may fail and leave an orphan.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, folder, contentType string) (Object, error)
	Delete(ctx context.Context, externalID string) error
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ExtensionFor returns the file extension used for contentType keys.
func ExtensionFor(contentType string) string {
	return extensions[contentType]
}
