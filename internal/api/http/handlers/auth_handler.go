package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/dinewithus/internal/access"
	"github.com/spec-kit/dinewithus/internal/api/dto"
	"github.com/spec-kit/dinewithus/internal/auth"
	"github.com/spec-kit/dinewithus/internal/service"
	apperrors "github.com/spec-kit/dinewithus/pkg/util/errorutil"
)

// TokenRevoker remembers tokens signed out through this service.
type TokenRevoker interface {
	Revoke(ctx context.Context, accessToken string, ttl time.Duration) error
}

// SessionEnder ends the session at the identity provider.
type SessionEnder interface {
	SignOut(ctx context.Context, accessToken string) error
}

// AuthHandler exposes the internal auth API the front end reads role state from.
type AuthHandler struct {
	profiles    *service.ProfileService
	roles       *service.RoleService
	provider    SessionEnder
	revocations TokenRevoker
	revokeTTL   time.Duration
	logger      *zap.Logger
}

// AuthHandlerDependencies bundles the handler's collaborators. Revocations may be nil.
type AuthHandlerDependencies struct {
	Profiles    *service.ProfileService
	Roles       *service.RoleService
	Provider    SessionEnder
	Revocations TokenRevoker
	// RevokeTTL applies when a token's expiry cannot be read.
	RevokeTTL time.Duration
	Logger    *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(deps AuthHandlerDependencies) *AuthHandler {
	return &AuthHandler{
		profiles:    deps.Profiles,
		roles:       deps.Roles,
		provider:    deps.Provider,
		revocations: deps.Revocations,
		revokeTTL:   deps.RevokeTTL,
		logger:      deps.Logger,
	}
}

// CurrentUser handles GET /api/auth/current-user.
func (h *AuthHandler) CurrentUser(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Unauthorized")
	}

	principal, err := h.profiles.CurrentUser(c.UserContext(), caller.User)
	if err != nil {
		return err
	}

	body := dto.NewPrincipalResponse(principal)
	return c.JSON(dto.CurrentUserResponse{User: body, Session: body})
}

// CheckRoleSelection handles GET /api/auth/check-role-selection.
func (h *AuthHandler) CheckRoleSelection(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Unauthorized")
	}

	status, err := h.profiles.CheckRoleSelection(c.UserContext(), caller.User.Email)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewRoleSelectionResponse(status))
}

// UpdateRole handles POST /api/auth/update-role.
func (h *AuthHandler) UpdateRole(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Unauthorized")
	}

	var req dto.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	principal, err := h.roles.SetRole(c.UserContext(), service.SetRoleInput{
		AccessToken: caller.Token,
		User:        caller.User,
		Role:        req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.UpdateRoleResponse{Success: true, Role: string(principal.Role)})
}

// Access handles GET /api/auth/access?capability=book|host_area.
func (h *AuthHandler) Access(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Unauthorized")
	}

	capability, ok := access.ParseCapability(c.Query("capability"))
	if !ok {
		return apperrors.NewValidationError("unknown capability", map[string]any{
			"allowed": []access.Capability{access.CapabilityBook, access.CapabilityHostArea},
		})
	}

	principal, err := h.profiles.CurrentUser(c.UserContext(), caller.User)
	if err != nil {
		return err
	}
	return c.JSON(access.Decide(capability, principal.EffectiveRole()))
}

// SignOut handles POST /api/auth/signout. The token is revoked here until it would have
// expired and the provider session is ended; the request fails only when both do.
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Unauthorized")
	}
	ctx := c.UserContext()

	var revokeErr, providerErr error
	if h.revocations != nil {
		if revokeErr = h.revocations.Revoke(ctx, caller.Token, h.remainingLifetime(caller.Token)); revokeErr != nil {
			h.logger.Warn("token revocation failed", zap.String("email", caller.User.Email), zap.Error(revokeErr))
		}
	}
	if h.provider != nil {
		if providerErr = h.provider.SignOut(ctx, caller.Token); providerErr != nil {
			h.logger.Warn("identity provider sign-out failed", zap.String("email", caller.User.Email), zap.Error(providerErr))
		}
	}

	if revokeErr != nil && (h.provider == nil || providerErr != nil) {
		return apperrors.NewInternalError(errors.Join(revokeErr, providerErr))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) remainingLifetime(token string) time.Duration {
	claims, err := auth.ClaimsFromToken(token)
	if err != nil || claims.ExpiresAt == nil {
		return h.revokeTTL
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
		return ttl
	}
	return time.Second
}
