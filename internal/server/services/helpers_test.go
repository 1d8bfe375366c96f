package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/memberkeeper/internal/cryptox"
	"github.com/dmitrijs2005/memberkeeper/internal/logging"
	"github.com/dmitrijs2005/memberkeeper/internal/server/auth"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
	"github.com/dmitrijs2005/memberkeeper/internal/server/repositories/users"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testHasher() *cryptox.Argon2Hasher {
	return cryptox.NewArgon2Hasher(cryptox.Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1})
}

func testIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	iss, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret, Issuer: "memberkeeper", Validity: time.Hour})
	require.NoError(t, err)
	return iss
}

func newTestUserService(t *testing.T, repo users.Repository) (*UserService, *auth.TokenIssuer) {
	t.Helper()
	iss := testIssuer(t)
	return NewUserService(repo, testHasher(), iss, logging.Nop{}), iss
}

// flakyRepo wraps a repository and fails selected writes.
type flakyRepo struct {
	users.Repository
	updateHashErr error
	swapErr       error
}

func (r *flakyRepo) UpdatePasswordHash(ctx context.Context, id, expectedOldHash, newHash string) error {
	if r.updateHashErr != nil {
		return r.updateHashErr
	}
	return r.Repository.UpdatePasswordHash(ctx, id, expectedOldHash, newHash)
}

func (r *flakyRepo) SwapProfileImage(ctx context.Context, id string, img *models.ProfileImage) (*models.ProfileImage, error) {
	if r.swapErr != nil {
		return nil, r.swapErr
	}
	return r.Repository.SwapProfileImage(ctx, id, img)
}

// brokenHasher fails to hash and never verifies.
type brokenHasher struct{ err error }

func (h brokenHasher) Hash([]byte) (string, error)        { return "", h.err }
func (h brokenHasher) Verify(string, []byte) (bool, bool) { return false, false }
