package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dinewithus/internal/access"
	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/observability"
	"github.com/spec-kit/dinewithus/internal/repository"
	apperrors "github.com/spec-kit/dinewithus/pkg/util/errorutil"
)

const mirrorKey = "auth_mirror_principal"

// RoleLookup reads the local mirror record that role gates trust.
type RoleLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.Principal, error)
}

// RequireCapability gates a route on the caller's mirror role. Token claims are never
// consulted here: they may lag behind a role change.
func RequireCapability(capability access.Capability, principals RoleLookup, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("Unauthorized")
		}

		var role domain.Role
		mirror, err := principals.GetByEmail(c.UserContext(), caller.User.Email)
		switch {
		case err == nil:
			role = mirror.EffectiveRole()
			c.Locals(mirrorKey, mirror)
		case errors.Is(err, repository.ErrNotFound):
		default:
			return apperrors.NewInternalError(err)
		}

		decision := access.Decide(capability, role)
		if !decision.Allowed {
			metrics.RecordDenial(string(capability), string(role))
			return apperrors.NewForbidden(decision.Message, map[string]any{
				"capability": capability,
				"redirect":   decision.Redirect,
			})
		}
		return c.Next()
	}
}

// MirrorFromContext returns the mirror record loaded by RequireCapability.
func MirrorFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(mirrorKey).(*domain.Principal)
	return principal, ok
}
