package api

import (
	"time"

	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

const dateLayout = "2006-01-02"

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	Name        string `json:"name" validate:"max=200"`
	BirthDate   string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Phone       string `json:"phone" validate:"max=32"`
	Institution string `json:"institution" validate:"max=200"`
}

func (r RegisterRequest) profile() models.ProfileFields {
	return models.ProfileFields{
		Name:        r.Name,
		BirthDate:   parseDate(r.BirthDate),
		Phone:       r.Phone,
		Institution: r.Institution,
	}
}

type CreateUserRequest struct {
	RegisterRequest
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type UpdateProfileRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=200"`
	BirthDate   *string `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Institution *string `json:"institution,omitempty" validate:"omitempty,max=200"`
}

func (r UpdateProfileRequest) patch() models.ProfilePatch {
	p := models.ProfilePatch{
		Name:        r.Name,
		Phone:       r.Phone,
		Institution: r.Institution,
	}
	if r.BirthDate != nil {
		// An empty string clears the stored date.
		p.BirthDate = parseDate(*r.BirthDate)
		p.ClearBirthDate = p.BirthDate == nil
	}
	return p
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type UserResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	Name        string  `json:"name,omitempty"`
	BirthDate   *string `json:"birth_date,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Institution string  `json:"institution,omitempty"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// toUserResponse never copies the password hash.
func toUserResponse(u *models.User) UserResponse {
	resp := UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role.String(),
		Name:        u.Profile.Name,
		Phone:       u.Profile.Phone,
		Institution: u.Profile.Institution,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   u.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if u.Profile.BirthDate != nil {
		bd := u.Profile.BirthDate.Format(dateLayout)
		resp.BirthDate = &bd
	}
	if u.Image != nil {
		resp.AvatarURL = u.Image.URL
	}
	return resp
}

type RegisterResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

type AvatarResponse struct {
	AvatarURL string `json:"avatar_url"`
}

// parseDate expects a value already checked by the validator.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
