package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

// TokenValidator turns a raw token into an Identity.
type TokenValidator interface {
	Validate(token string) (Identity, error)
}

// Guard decides whether a caller may invoke an operation. Every outcome is
// one of allowed, common.ErrNoIdentity or common.ErrForbidden.
type Guard struct {
	tokens TokenValidator
}

func NewGuard(tokens TokenValidator) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate resolves an "Authorization: Bearer <token>" header value.
// A missing header, another scheme or a bad token all yield
// common.ErrNoIdentity; the underlying token error is wrapped for logs.
func (g *Guard) Authenticate(header string) (Identity, error) {
	token, ok := BearerToken(header)
	if !ok {
		return Identity{}, common.ErrNoIdentity
	}

	id, err := g.tokens.Validate(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", common.ErrNoIdentity, err)
	}
	return id, nil
}

// Authorize checks that id exists and holds role.
func (g *Guard) Authorize(id *Identity, role models.Role) error {
	if id == nil {
		return common.ErrNoIdentity
	}
	if id.Role != role {
		return common.ErrForbidden
	}
	return nil
}

// AuthorizeContext is Authorize for the identity stored in ctx.
func (g *Guard) AuthorizeContext(ctx context.Context, role models.Role) error {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return common.ErrNoIdentity
	}
	return g.Authorize(&id, role)
}

// BearerToken extracts the token from a bearer authorization value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
