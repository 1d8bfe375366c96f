// Package api is the HTTP edge of the server: fiber handlers, request
// validation, guard middleware and error mapping.
package api

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/logging"
	"github.com/dmitrijs2005/memberkeeper/internal/server/auth"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

// UserService is the credential and profile surface the handlers need.
type UserService interface {
	Register(ctx context.Context, email, password string, profile models.ProfileFields) (*models.User, error)
	CreateUser(ctx context.Context, email, password string, profile models.ProfileFields, role models.Role) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	IssueToken(u *models.User) (string, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error)
	SetRole(ctx context.Context, userID string, role models.Role) error
}

// MediaService replaces profile images.
type MediaService interface {
	ReplaceImage(ctx context.Context, userID string, data []byte) (string, error)
}

type Handler struct {
	users         UserService
	media         MediaService
	guard         *auth.Guard
	validate      *validator.Validate
	log           logging.Logger
	tokenValidity time.Duration
	maxImageBytes int64
}

func NewHandler(users UserService, media MediaService, guard *auth.Guard, log logging.Logger, tokenValidity time.Duration, maxImageBytes int64) *Handler {
	return &Handler{
		users:         users,
		media:         media,
		guard:         guard,
		validate:      validator.New(),
		log:           log,
		tokenValidity: tokenValidity,
		maxImageBytes: maxImageBytes,
	}
}

// bind parses the JSON body into req and validates it.
func (h *Handler) bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fmt.Errorf("%w: cannot parse body", common.ErrorValidation)
	}
	return h.validate.Struct(req)
}

func identity(c *fiber.Ctx) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.UserContext())
	if !ok {
		return auth.Identity{}, common.ErrNoIdentity
	}
	return id, nil
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": "memberkeeper"})
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	u, err := h.users.Register(c.UserContext(), req.Email, req.Password, req.profile())
	if err != nil {
		return err
	}

	token, err := h.users.IssueToken(u)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(RegisterResponse{User: toUserResponse(u), AccessToken: token})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	u, token, err := h.users.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(LoginResponse{
		AccessToken: token,
		TokenType:   common.BearerScheme,
		ExpiresIn:   int64(h.tokenValidity.Seconds()),
		User:        toUserResponse(u),
	})
}

func (h *Handler) GetMe(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	u, err := h.users.GetProfile(c.UserContext(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(toUserResponse(u))
}

func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	var req UpdateProfileRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	u, err := h.users.UpdateProfile(c.UserContext(), id.UserID, req.patch())
	if err != nil {
		return err
	}
	return c.JSON(toUserResponse(u))
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	var req ChangePasswordRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	if err := h.users.ChangePassword(c.UserContext(), id.UserID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReplaceAvatar reads the multipart field "image" and makes it the caller's
// profile image.
func (h *Handler) ReplaceAvatar(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return fmt.Errorf("%w: multipart field image is required", common.ErrorValidation)
	}
	if h.maxImageBytes > 0 && fh.Size > h.maxImageBytes {
		return fmt.Errorf("%w: image exceeds %d bytes", common.ErrorValidation, h.maxImageBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	url, err := h.media.ReplaceImage(c.UserContext(), id.UserID, data)
	if err != nil {
		return err
	}
	return c.JSON(AvatarResponse{AvatarURL: url})
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		return err
	}

	u, err := h.users.CreateUser(c.UserContext(), req.Email, req.Password, req.profile(), role)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toUserResponse(u))
}

func (h *Handler) SetRole(c *fiber.Ctx) error {
	var req SetRoleRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		return err
	}

	if err := h.users.SetRole(c.UserContext(), c.Params("id"), role); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
