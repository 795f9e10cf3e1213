package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dinewithus/internal/api/dto"
	"github.com/spec-kit/dinewithus/internal/auth"
	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/identity"
	apperrors "github.com/spec-kit/dinewithus/pkg/util/errorutil"
)

// IdentityHandler serves a GoTrue-compatible subset of routes backed by the development
// provider, so clients can sign in without an external identity service.
type IdentityHandler struct {
	provider identity.Provider
	now      func() time.Time
}

// NewIdentityHandler constructs handler.
func NewIdentityHandler(provider identity.Provider) *IdentityHandler {
	return &IdentityHandler{provider: provider, now: time.Now}
}

// SendCode handles POST /auth/v1/otp.
func (h *IdentityHandler) SendCode(c *fiber.Ctx) error {
	var req dto.OneTimeCodeRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	if err := h.provider.SendOneTimeCode(c.UserContext(), req.Email); err != nil {
		return providerError(err)
	}
	return c.JSON(fiber.Map{})
}

// Verify handles POST /auth/v1/verify.
func (h *IdentityHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Token == "" {
		return apperrors.NewValidationError("email and token required", nil)
	}
	session, err := h.provider.VerifyOneTimeCode(c.UserContext(), req.Email, req.Token)
	if err != nil {
		return providerError(err)
	}
	return c.JSON(identity.NewSessionPayload(session, h.now()))
}

// Token handles POST /auth/v1/token?grant_type=refresh_token.
func (h *IdentityHandler) Token(c *fiber.Ctx) error {
	if grant := c.Query("grant_type"); grant != "refresh_token" {
		return apperrors.NewValidationError("unsupported grant_type", map[string]any{"grant_type": grant})
	}
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return apperrors.NewValidationError("refresh_token required", nil)
	}
	session, err := h.provider.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return providerError(err)
	}
	return c.JSON(identity.NewSessionPayload(session, h.now()))
}

// User handles GET /auth/v1/user.
func (h *IdentityHandler) User(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return apperrors.NewUnauthorized("Unauthorized")
	}
	user, err := h.provider.GetUser(c.UserContext(), token)
	if err != nil {
		return providerError(err)
	}
	return c.JSON(identity.NewUserPayload(*user))
}

// UpdateUser handles PUT /auth/v1/user.
func (h *IdentityHandler) UpdateUser(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return apperrors.NewUnauthorized("Unauthorized")
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.provider.UpdateUserMetadata(c.UserContext(), token, req.Data)
	if err != nil {
		return providerError(err)
	}
	return c.JSON(identity.NewUserPayload(*user))
}

// Logout handles POST /auth/v1/logout.
func (h *IdentityHandler) Logout(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return apperrors.NewUnauthorized("Unauthorized")
	}
	if err := h.provider.SignOut(c.UserContext(), token); err != nil {
		return providerError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func providerError(err error) error {
	if errors.Is(err, domain.ErrInvalidCredential) {
		return apperrors.NewUnauthorized("invalid credential")
	}
	return apperrors.NewInternalError(err)
}
