// Package services contains server-side business logic. This file implements
// UserService: registration, login, password changes and profile updates
// over a users.Repository.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/logging"
	"github.com/dmitrijs2005/memberkeeper/internal/server/auth"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
	"github.com/dmitrijs2005/memberkeeper/internal/server/repositories/users"
)

var loginAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Login attempts by outcome",
	},
	[]string{"outcome"},
)

// PasswordHasher turns passwords into stored digests and checks them.
type PasswordHasher interface {
	Hash(plaintext []byte) (string, error)
	Verify(encoded string, plaintext []byte) (ok bool, needsRehash bool)
}

// TokenIssuer mints access tokens.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

// UserService owns user credentials and profile fields.
type UserService struct {
	repo        users.Repository
	hasher      PasswordHasher
	tokens      TokenIssuer
	log         logging.Logger
	phoneRegion string

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService wires a UserService.
func NewUserService(repo users.Repository, hasher PasswordHasher, tokens TokenIssuer, log logging.Logger) *UserService {
	return &UserService{
		repo:        repo,
		hasher:      hasher,
		tokens:      tokens,
		log:         log,
		phoneRegion: models.DefaultPhoneRegion,
	}
}

// Register creates a regular user. An existing email (compared byte-exact)
// yields common.ErrDuplicateEmail and the existing record is left alone.
func (s *UserService) Register(ctx context.Context, email, password string, profile models.ProfileFields) (*models.User, error) {
	return s.create(ctx, email, password, profile, models.RoleUser)
}

// CreateUser is the administrative create with an explicit role.
func (s *UserService) CreateUser(ctx context.Context, email, password string, profile models.ProfileFields, role models.Role) (*models.User, error) {
	if !role.IsValid() {
		return nil, common.ErrInvalidRole
	}
	return s.create(ctx, email, password, profile, role)
}

func (s *UserService) create(ctx context.Context, email, password string, profile models.ProfileFields, role models.Role) (*models.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrorValidation)
	}
	if err := profile.Normalize(s.phoneRegion); err != nil {
		return nil, err
	}

	_, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateEmail
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}

	u, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Profile:      profile,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login verifies credentials and issues an access token. An unknown email
// and a wrong password are indistinguishable: both return
// common.ErrInvalidCredentials after a full hash verification.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	pw := []byte(password)
	defer common.WipeByteArray(pw)

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerify(pw)
			loginAttempts.WithLabelValues("invalid_credentials").Inc()
			return nil, "", common.ErrInvalidCredentials
		}
		loginAttempts.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("error looking up user: %w", err)
	}

	ok, needsRehash := s.hasher.Verify(u.PasswordHash, pw)
	if !ok {
		loginAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, "", common.ErrInvalidCredentials
	}

	if needsRehash {
		s.rehash(ctx, u, pw)
	}

	token, err := s.tokens.Issue(IdentityOf(u))
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("error issuing token: %w", err)
	}

	loginAttempts.WithLabelValues("success").Inc()
	return u, token, nil
}

// IssueToken mints a token for an already authenticated user.
func (s *UserService) IssueToken(u *models.User) (string, error) {
	return s.tokens.Issue(IdentityOf(u))
}

// IdentityOf is the token identity of u.
func IdentityOf(u *models.User) auth.Identity {
	return auth.Identity{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName(),
		Role:        u.Role,
	}
}

// burnVerify spends the same work as a real verification so unknown
// emails cannot be told apart by response time.
func (s *UserService) burnVerify(password []byte) {
	s.dummyOnce.Do(func() {
		secret, err := common.GenerateRandByteArray(32)
		if err != nil {
			return
		}
		s.dummyHash, _ = s.hasher.Hash(secret)
	})
	if s.dummyHash != "" {
		s.hasher.Verify(s.dummyHash, password)
	}
}

// rehash upgrades a stored digest made with outdated parameters. Failures
// only cost the upgrade, never the login.
func (s *UserService) rehash(ctx context.Context, u *models.User, password []byte) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Warn(ctx, "password rehash failed", "user_id", u.ID, "error", err)
		return
	}
	if err := s.repo.UpdatePasswordHash(ctx, u.ID, u.PasswordHash, newHash); err != nil {
		s.log.Warn(ctx, "password rehash not stored", "user_id", u.ID, "error", err)
		return
	}
	u.PasswordHash = newHash
	s.log.Info(ctx, "password hash upgraded", "user_id", u.ID)
}

// ChangePassword replaces the password after verifying the old one. The new
// digest is written only if the stored digest is still the one that was
// verified, so a concurrent change makes this call fail with
// common.ErrWrongOldPassword instead of silently overwriting.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if ok, _ := s.hasher.Verify(u.PasswordHash, []byte(oldPassword)); !ok {
		return common.ErrWrongOldPassword
	}

	newHash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePasswordHash(ctx, userID, u.PasswordHash, newHash); err != nil {
		if errors.Is(err, users.ErrHashMismatch) {
			return common.ErrWrongOldPassword
		}
		return err
	}

	s.log.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// GetProfile returns the user with the given id.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// UpdateProfile applies patch to the user's profile fields. Credentials,
// role and image are not touched.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := patch.Apply(u.Profile)
	if err := fields.Normalize(s.phoneRegion); err != nil {
		return nil, err
	}

	return s.repo.UpdateProfile(ctx, userID, fields)
}

// SetRole changes a user's role. Callers gate this to administrators.
func (s *UserService) SetRole(ctx context.Context, userID string, role models.Role) error {
	if !role.IsValid() {
		return common.ErrInvalidRole
	}
	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	s.log.Info(ctx, "role changed", "user_id", userID, "role", role)
	return nil
}
