package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	r, err = ParseRole("user")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	_, err = ParseRole("Admin")
	assert.ErrorIs(t, err, common.ErrInvalidRole)

	_, err = ParseRole("")
	assert.ErrorIs(t, err, common.ErrInvalidRole)
}

func TestUser_DisplayName(t *testing.T) {
	u := &User{Email: "a@example.com"}
	assert.Equal(t, "a@example.com", u.DisplayName())

	u.Profile.Name = "Ada"
	assert.Equal(t, "Ada", u.DisplayName())
}

func TestProfileFields_Normalize(t *testing.T) {
	t.Run("phone in e164", func(t *testing.T) {
		p := ProfileFields{Name: "  Ada  ", Phone: " (202) 456-1111 ", Institution: " MIT "}
		require.NoError(t, p.Normalize(DefaultPhoneRegion))

		assert.Equal(t, "Ada", p.Name)
		assert.Equal(t, "MIT", p.Institution)
		assert.Equal(t, "+12024561111", p.Phone)
	})

	t.Run("international number ignores region", func(t *testing.T) {
		p := ProfileFields{Phone: "+44 20 7031 3000"}
		require.NoError(t, p.Normalize(DefaultPhoneRegion))
		assert.Equal(t, "+442070313000", p.Phone)
	})

	t.Run("empty phone is allowed", func(t *testing.T) {
		p := ProfileFields{}
		require.NoError(t, p.Normalize(DefaultPhoneRegion))
		assert.Empty(t, p.Phone)
	})

	t.Run("garbage phone", func(t *testing.T) {
		p := ProfileFields{Phone: "not a phone"}
		assert.ErrorIs(t, p.Normalize(DefaultPhoneRegion), common.ErrorValidation)
	})

	t.Run("birth date is truncated to the day", func(t *testing.T) {
		bd := time.Date(1990, 5, 17, 13, 45, 0, 0, time.UTC)
		p := ProfileFields{BirthDate: &bd}
		require.NoError(t, p.Normalize(DefaultPhoneRegion))
		assert.Equal(t, time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC), *p.BirthDate)
	})
}

func TestProfilePatch_Apply(t *testing.T) {
	name := "Grace"
	base := ProfileFields{Name: "Ada", Phone: "+12024561111", Institution: "MIT"}

	got := ProfilePatch{Name: &name}.Apply(base)

	assert.Equal(t, "Grace", got.Name)
	assert.Equal(t, "+12024561111", got.Phone)
	assert.Equal(t, "MIT", got.Institution)
	assert.Equal(t, "Ada", base.Name, "original is not modified")
}

func TestProfilePatch_ApplyClearsBirthDate(t *testing.T) {
	bd := time.Date(1990, 12, 31, 0, 0, 0, 0, time.UTC)
	base := ProfileFields{Name: "Ada", BirthDate: &bd}

	got := ProfilePatch{}.Apply(base)
	require.NotNil(t, got.BirthDate, "absent birth date is left alone")

	got = ProfilePatch{ClearBirthDate: true}.Apply(base)
	assert.Nil(t, got.BirthDate)
	assert.Equal(t, "Ada", got.Name)
	assert.NotNil(t, base.BirthDate, "original is not modified")
}
