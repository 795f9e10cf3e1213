package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/dinewithus/internal/auth"
	"github.com/spec-kit/dinewithus/internal/backend"
	apperrors "github.com/spec-kit/dinewithus/pkg/util/errorutil"
)

var dinnerQueryKeys = []string{"q", "city", "date", "minPrice", "maxPrice", "seats", "limit", "after"}

// DinnersHandler relays dinner and booking routes to the backend.
type DinnersHandler struct {
	backend *backend.Client
	logger  *zap.Logger
}

// NewDinnersHandler constructs handler.
func NewDinnersHandler(client *backend.Client, logger *zap.Logger) *DinnersHandler {
	return &DinnersHandler{backend: client, logger: logger}
}

// List handles GET /api/dinners.
func (h *DinnersHandler) List(c *fiber.Ctx) error {
	query := url.Values{}
	for _, key := range dinnerQueryKeys {
		if v := c.Query(key); v != "" {
			query.Set(key, v)
		}
	}
	resp, err := h.backend.ListDinners(c.UserContext(), query)
	if err != nil {
		return relayError(err)
	}
	if !resp.OK() {
		return backendStatus(resp, "")
	}
	return relay(c, fiber.StatusOK, resp)
}

// Get handles GET /api/dinners/:id.
func (h *DinnersHandler) Get(c *fiber.Ctx) error {
	resp, err := h.backend.GetDinner(c.UserContext(), c.Params("id"))
	if err != nil {
		return relayError(err)
	}
	if resp.Status == fiber.StatusNotFound {
		return apperrors.NewNotFound("Dinner", nil)
	}
	if !resp.OK() {
		return backendStatus(resp, "")
	}
	return relay(c, fiber.StatusOK, resp)
}

// Create handles POST /api/dinners. A backend refusal is followed by a look at how the
// backend sees the caller, which usually explains a role that has not synced yet.
func (h *DinnersHandler) Create(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Unauthorized")
	}

	resp, err := h.backend.CreateDinner(c.UserContext(), caller.Token, c.Body())
	if err != nil {
		return relayError(err)
	}
	if !resp.OK() {
		if resp.Status == fiber.StatusForbidden {
			h.diagnose(c.UserContext(), caller.Token, caller.User.Email)
		}
		h.logger.Warn("backend rejected dinner", zap.String("email", caller.User.Email), zap.Int("status", resp.Status), zap.String("message", resp.Message()))
		return backendStatus(resp, "Failed to create dinner")
	}
	return relay(c, fiber.StatusCreated, resp)
}

// Book handles POST /api/dinners/:id/bookings.
func (h *DinnersHandler) Book(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Unauthorized")
	}

	resp, err := h.backend.CreateBooking(c.UserContext(), caller.Token, c.Params("id"), c.Body())
	if err != nil {
		return relayError(err)
	}
	if !resp.OK() {
		h.logger.Warn("backend rejected booking", zap.String("email", caller.User.Email), zap.Int("status", resp.Status), zap.String("message", resp.Message()))
		return backendStatus(resp, "Failed to create booking")
	}
	return relay(c, fiber.StatusCreated, resp)
}

// MyBookings handles GET /api/users/me/bookings. A backend 404 means no bookings yet.
func (h *DinnersHandler) MyBookings(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Unauthorized")
	}

	resp, err := h.backend.MyBookings(c.UserContext(), caller.Token)
	if err != nil {
		return relayError(err)
	}
	if resp.Status == fiber.StatusNotFound {
		return c.JSON([]any{})
	}
	if !resp.OK() {
		return backendStatus(resp, "")
	}
	return relay(c, fiber.StatusOK, resp)
}

func (h *DinnersHandler) diagnose(ctx context.Context, token, email string) {
	probes := []struct {
		name string
		call func(context.Context, string) (*backend.Response, error)
	}{
		{"host_profile", h.backend.HostProfile},
		{"user", h.backend.CurrentUser},
	}
	for _, probe := range probes {
		resp, err := probe.call(ctx, token)
		if err != nil {
			h.logger.Warn("backend diagnostic failed", zap.String("probe", probe.name), zap.String("email", email), zap.Error(err))
			continue
		}
		h.logger.Info("backend diagnostic",
			zap.String("probe", probe.name),
			zap.String("email", email),
			zap.Int("status", resp.Status),
			zap.ByteString("body", resp.Body))
	}
}

func relay(c *fiber.Ctx, status int, resp *backend.Response) error {
	c.Status(status)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(resp.Body)
}

func backendStatus(resp *backend.Response, fallback string) error {
	message := resp.Message()
	if message == "" {
		message = fallback
	}
	if message == "" {
		message = fmt.Sprintf("Backend error: %d", resp.Status)
	}
	return apperrors.FromStatus(resp.Status, message)
}

func relayError(err error) error {
	if errors.Is(err, backend.ErrNotConfigured) {
		return apperrors.NewDomainError("INTERNAL_ERROR", "API URL not configured", fiber.StatusInternalServerError, nil)
	}
	return apperrors.NewUpstreamError("backend unavailable", err)
}
