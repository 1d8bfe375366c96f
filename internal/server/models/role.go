package models

import (
	"fmt"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
)

// Role is the coarse access level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

func (r Role) String() string { return string(r) }

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidRole, s)
	}
	return r, nil
}
