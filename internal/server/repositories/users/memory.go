package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

// MemoryRepository keeps users in process memory. Every operation runs under
// one mutex, so each is atomic with respect to the others.
type MemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func clone(u *models.User) *models.User {
	c := *u
	if u.Image != nil {
		img := *u.Image
		c.Image = &img
	}
	if u.Profile.BirthDate != nil {
		bd := *u.Profile.BirthDate
		c.Profile.BirthDate = &bd
	}
	return &c
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return nil, common.ErrDuplicateEmail
	}

	u := clone(user)
	u.ID = uuid.NewString()
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt = r.now()
	u.UpdatedAt = u.CreatedAt

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return clone(u), nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) UpdatePasswordHash(_ context.Context, id, expectedOldHash, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if u.PasswordHash != expectedOldHash {
		return ErrHashMismatch
	}
	u.PasswordHash = newHash
	u.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, id string, fields models.ProfileFields) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Profile = clone(&models.User{Profile: fields}).Profile
	u.UpdatedAt = r.now()
	return clone(u), nil
}

func (r *MemoryRepository) UpdateRole(_ context.Context, id string, role models.Role) error {
	if !role.IsValid() {
		return common.ErrInvalidRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Role = role
	u.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) SwapProfileImage(_ context.Context, id string, img *models.ProfileImage) (*models.ProfileImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}

	previous := u.Image
	if img != nil {
		next := *img
		u.Image = &next
	} else {
		u.Image = nil
	}
	u.UpdatedAt = r.now()

	return previous, nil
}
