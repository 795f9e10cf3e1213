// Package client is the front end's side of the internal API and the identity provider:
// it fetches profiles, drives role selection and keeps the credential between runs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spec-kit/dinewithus/internal/access"
	"github.com/spec-kit/dinewithus/internal/api/dto"
	"github.com/spec-kit/dinewithus/internal/domain"
)

// APIError is a non-2xx answer of the internal API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d %s: %s", e.Status, e.Code, e.Message)
}

// APIClient calls the internal /api routes with the caller's bearer token.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient builds a client for the service at baseURL.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// CurrentUser resolves the caller's mirror record, creating it on first use.
func (c *APIClient) CurrentUser(ctx context.Context, accessToken string) (*domain.Principal, error) {
	var resp dto.CurrentUserResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/current-user", accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return resp.User.Principal(), nil
}

// CheckRoleSelection reports whether the caller still has to pick a role.
func (c *APIClient) CheckRoleSelection(ctx context.Context, accessToken string) (*dto.RoleSelectionResponse, error) {
	var resp dto.RoleSelectionResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/check-role-selection", accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateRole applies a role choice. The caller refreshes its credential afterwards.
func (c *APIClient) UpdateRole(ctx context.Context, accessToken, role string) (domain.Role, error) {
	var resp dto.UpdateRoleResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/update-role", accessToken, dto.UpdateRoleRequest{Role: role}, &resp); err != nil {
		return "", err
	}
	return domain.Role(resp.Role), nil
}

// Access asks whether the caller holds capability.
func (c *APIClient) Access(ctx context.Context, accessToken string, capability access.Capability) (*access.Decision, error) {
	var resp access.Decision
	path := "/api/auth/access?capability=" + url.QueryEscape(string(capability))
	if err := c.do(ctx, http.MethodGet, path, accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignOut revokes the token at the service, which also ends the provider session.
func (c *APIClient) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/signout", accessToken, nil, nil)
}

func (c *APIClient) do(ctx context.Context, method, path, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var envelope dto.ErrorEnvelope
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope)
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Code:    envelope.Error.Code,
		Message: envelope.Error.Message,
		Details: envelope.Error.Details,
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", domain.ErrInvalidCredential, apiErr.Message)
	}
	return apiErr
}
