package server

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/memberkeeper/internal/logging"
	"github.com/dmitrijs2005/memberkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/memberkeeper/internal/server/config"
	"github.com/dmitrijs2005/memberkeeper/internal/telemetry"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	return c
}

func TestNewBlobStore_Memory(t *testing.T) {
	c := testConfig()
	c.BlobBackend = config.BlobBackendMemory

	store, err := NewBlobStore(context.Background(), c)
	require.NoError(t, err)
	require.IsType(t, &blobstore.MemoryStore{}, store)

	obj, err := store.Upload(context.Background(), []byte("x"), "avatars", "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.URL, "http://127.0.0.1:9000/avatars/avatars/"), obj.URL)
}

func TestNewBlobStore_S3(t *testing.T) {
	c := testConfig()
	c.S3AccessKey = "minio"
	c.S3SecretKey = "minio123"

	store, err := NewBlobStore(context.Background(), c)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.S3Store{}, store)
}

func TestNewBlobStore_Unknown(t *testing.T) {
	c := testConfig()
	c.BlobBackend = "ftp"

	_, err := NewBlobStore(context.Background(), c)
	assert.Error(t, err)
}

func TestNewHasher_UsesConfiguredCost(t *testing.T) {
	c := testConfig()
	c.Argon2Time = 2
	c.Argon2MemoryKiB = 64
	c.Argon2Threads = 1

	digest, err := NewHasher(c).Hash([]byte("pa55word"))
	require.NoError(t, err)
	assert.Contains(t, digest, "$m=64,t=2,p=1$")
}

func TestNewApp_DBFailureShutsDownTracing(t *testing.T) {
	shutdownCalls := 0
	orig := initTracerProvider
	initTracerProvider = func(context.Context, string, string, logging.Logger) (telemetry.ShutdownFunc, error) {
		return func(context.Context) error {
			shutdownCalls++
			return nil
		}, nil
	}
	t.Cleanup(func() { initTracerProvider = orig })

	c := testConfig()
	c.DatabaseDSN = "postgres://%zz"

	app, err := NewApp(context.Background(), c)
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "db init error")
	assert.Equal(t, 1, shutdownCalls)
}
