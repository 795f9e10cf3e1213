package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/dinewithus/internal/domain"
	apperrors "github.com/spec-kit/dinewithus/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// UserVerifier resolves a bearer token to the identity provider's user.
type UserVerifier interface {
	GetUser(ctx context.Context, accessToken string) (*domain.IdentityUser, error)
}

// RevocationChecker reports tokens that were signed out through this service.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, accessToken string) (bool, error)
}

// Principal represents the authenticated caller.
type Principal struct {
	Token string
	User  domain.IdentityUser
}

// AuthMiddleware validates bearer tokens against the identity provider.
type AuthMiddleware struct {
	users       UserVerifier
	revocations RevocationChecker
	logger      *zap.Logger
}

// NewAuthMiddleware constructs middleware. revocations may be nil.
func NewAuthMiddleware(users UserVerifier, revocations RevocationChecker, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{users: users, revocations: revocations, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	token, err := BearerToken(authHeader)
	if err != nil {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	ctx := c.UserContext()
	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(ctx, token)
		if err != nil {
			// the identity provider still validates the token below
			m.logger.Warn("revocation check failed", zap.Error(err))
		} else if revoked {
			return apperrors.NewUnauthorized("token revoked")
		}
	}

	user, err := m.users.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredential) {
			return apperrors.NewUnauthorized("Unauthorized")
		}
		return apperrors.NewInternalError(err)
	}
	if user == nil || user.Email == "" {
		return apperrors.NewUnauthorized("Unauthorized")
	}

	c.Locals(principalKey, &Principal{Token: token, User: *user})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", domain.ErrInvalidCredential
	}
	return strings.TrimSpace(parts[1]), nil
}
