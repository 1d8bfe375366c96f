package blobstore

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrInjected is returned by MemoryStore operations set up to fail.
var ErrInjected = errors.New("injected blob store failure")

// MemoryStore keeps blobs in process memory. Failures can be injected for
// tests; a zero MemoryStore is not usable, call NewMemoryStore.
type MemoryStore struct {
	mu        sync.Mutex
	baseURL   string
	objects   map[string][]byte
	deleted   []string
	uploadErr error
	deleteErr error
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string][]byte),
	}
}

// FailUploads makes every following Upload return err; nil restores.
func (m *MemoryStore) FailUploads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErr = err
}

// FailDeletes makes every following Delete return err; nil restores.
func (m *MemoryStore) FailDeletes(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

func (m *MemoryStore) Upload(ctx context.Context, data []byte, folder, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.uploadErr != nil {
		return Object{}, m.uploadErr
	}

	key := path.Join(strings.Trim(folder, "/"), uuid.NewString()+ExtensionFor(contentType))
	m.objects[key] = append([]byte(nil), data...)

	return Object{URL: m.baseURL + "/" + key, ExternalID: key}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, externalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}

	delete(m.objects, externalID)
	m.deleted = append(m.deleted, externalID)
	return nil
}

// Has reports whether externalID is currently stored.
func (m *MemoryStore) Has(externalID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[externalID]
	return ok
}

// Len is the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Deleted lists successful Delete calls in order.
func (m *MemoryStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}
