// Package auth issues and validates access tokens and guards operations
// that require an authenticated or privileged caller.
//
// Tokens are stateless HS256 JWTs; a token stays valid until it expires
// and cannot be revoked earlier.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	Role        models.Role
}

// Claims is the JWT payload: the identity plus registered claims. It never
// carries password material.
type Claims struct {
	jwt.RegisteredClaims
	Email       string      `json:"email"`
	DisplayName string      `json:"name,omitempty"`
	Role        models.Role `json:"role"`
}

// TokenConfig configures a TokenIssuer. Now defaults to time.Now.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Validity time.Duration
	Now      func() time.Time
}

// TokenIssuer signs and validates access tokens.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	validity time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// NewTokenIssuer returns an issuer for cfg.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	if cfg.Validity <= 0 {
		return nil, errors.New("token validity must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &TokenIssuer{
		secret:   secret,
		issuer:   cfg.Issuer,
		validity: cfg.Validity,
		now:      cfg.Now,
		parser:   jwt.NewParser(opts...),
	}, nil
}

// Validity is the lifetime of issued tokens.
func (i *TokenIssuer) Validity() time.Duration { return i.validity }

// Issue signs a token for id that expires Validity from now.
func (i *TokenIssuer) Issue(id Identity) (string, error) {
	if id.UserID == "" {
		return "", fmt.Errorf("%w: empty subject", common.ErrorValidation)
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
			ID:        uuid.NewString(),
		},
		Email:       id.Email,
		DisplayName: id.DisplayName,
		Role:        id.Role,
	})

	return token.SignedString(i.secret)
}

// Validate checks signature, algorithm, issuer and expiry of tokenString and
// returns the identity it carries. Expired tokens yield common.ErrTokenExpired;
// every other failure wraps common.ErrInvalidToken.
func (i *TokenIssuer) Validate(tokenString string) (Identity, error) {
	claims := &Claims{}

	token, err := i.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" || !claims.Role.IsValid() {
		return Identity{}, common.ErrInvalidToken
	}

	return Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
	}, nil
}
