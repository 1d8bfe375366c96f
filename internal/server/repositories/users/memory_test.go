package users

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

func seedUser(t *testing.T, r *MemoryRepository, email string) *models.User {
	t.Helper()
	u, err := r.Create(context.Background(), &models.User{Email: email, PasswordHash: "hash-0"})
	require.NoError(t, err)
	return u
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	u := seedUser(t, r, "ada@example.com")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.False(t, u.CreatedAt.IsZero())

	byEmail, err := r.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", byID.Email)

	_, err = r.GetByEmail(ctx, "ADA@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound, "emails match byte-exact")

	_, err = r.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_DuplicateEmailNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	first := seedUser(t, r, "ada@example.com")

	_, err := r.Create(ctx, &models.User{Email: "ada@example.com", PasswordHash: "other"})
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)

	got, err := r.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "hash-0", got.PasswordHash)
}

func TestMemoryRepository_ConcurrentCreateSameEmail(t *testing.T) {
	r := NewMemoryRepository()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Create(context.Background(), &models.User{Email: "race@example.com", PasswordHash: fmt.Sprint(i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, common.ErrDuplicateEmail):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func TestMemoryRepository_UpdatePasswordHash(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u := seedUser(t, r, "ada@example.com")

	assert.ErrorIs(t, r.UpdatePasswordHash(ctx, u.ID, "stale", "hash-1"), ErrHashMismatch)
	require.NoError(t, r.UpdatePasswordHash(ctx, u.ID, "hash-0", "hash-1"))
	assert.ErrorIs(t, r.UpdatePasswordHash(ctx, u.ID, "hash-0", "hash-2"), ErrHashMismatch)
	assert.ErrorIs(t, r.UpdatePasswordHash(ctx, "missing", "hash-0", "hash-2"), common.ErrorNotFound)

	got, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", got.PasswordHash)
}

func TestMemoryRepository_UpdateProfileAndRole(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u := seedUser(t, r, "ada@example.com")

	got, err := r.UpdateProfile(ctx, u.ID, models.ProfileFields{Name: "Ada", Institution: "MIT"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Profile.Name)
	assert.Equal(t, "hash-0", got.PasswordHash, "profile updates leave credentials alone")

	require.NoError(t, r.UpdateRole(ctx, u.ID, models.RoleAdmin))
	got, err = r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	assert.ErrorIs(t, r.UpdateRole(ctx, u.ID, models.Role("root")), common.ErrInvalidRole)
	assert.ErrorIs(t, r.UpdateRole(ctx, "missing", models.RoleAdmin), common.ErrorNotFound)
	_, err = r.UpdateProfile(ctx, "missing", models.ProfileFields{})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_SwapProfileImage(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u := seedUser(t, r, "ada@example.com")

	prev, err := r.SwapProfileImage(ctx, u.ID, &models.ProfileImage{URL: "u1", ExternalID: "e1"})
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = r.SwapProfileImage(ctx, u.ID, &models.ProfileImage{URL: "u2", ExternalID: "e2"})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "e1", prev.ExternalID)

	got, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, &models.ProfileImage{URL: "u2", ExternalID: "e2"}, got.Image)

	_, err = r.SwapProfileImage(ctx, "missing", nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u := seedUser(t, r, "ada@example.com")
	_, err := r.SwapProfileImage(ctx, u.ID, &models.ProfileImage{URL: "u1", ExternalID: "e1"})
	require.NoError(t, err)

	got, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	got.Image.ExternalID = "tampered"
	got.PasswordHash = "tampered"

	again, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "e1", again.Image.ExternalID)
	assert.Equal(t, "hash-0", again.PasswordHash)
}

func TestMemoryRepository_ConcurrentSwapsReturnEachPointerOnce(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u := seedUser(t, r, "ada@example.com")

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		replaced []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("e%d", i)
			prev, err := r.SwapProfileImage(ctx, u.ID, &models.ProfileImage{URL: "u/" + id, ExternalID: id})
			require.NoError(t, err)
			if prev != nil {
				mu.Lock()
				replaced = append(replaced, prev.ExternalID)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	final, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)

	assert.Len(t, replaced, n-1)
	assert.NotContains(t, replaced, final.Image.ExternalID)

	seen := make(map[string]bool, len(replaced))
	for _, id := range replaced {
		assert.False(t, seen[id], "pointer %s replaced twice", id)
		seen[id] = true
	}
}
