// Package users stores user accounts. Implementations serialize concurrent
// writes to the same user; callers never lock.
package users

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

// ErrHashMismatch is returned by UpdatePasswordHash when the stored hash is
// no longer the one the caller verified against.
var ErrHashMismatch = errors.New("password hash changed concurrently")

type Repository interface {
	// Create inserts user and returns it with ID and timestamps set. An
	// existing email (byte-exact) yields common.ErrDuplicateEmail.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// UpdatePasswordHash replaces the hash only while it still equals
	// expectedOldHash; otherwise it returns ErrHashMismatch.
	UpdatePasswordHash(ctx context.Context, id, expectedOldHash, newHash string) error
	UpdateProfile(ctx context.Context, id string, fields models.ProfileFields) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
	// SwapProfileImage sets the user's image to img (nil clears it) and
	// returns the pointer it replaced, read under the same lock.
	SwapProfileImage(ctx context.Context, id string, img *models.ProfileImage) (previous *models.ProfileImage, err error)
}
