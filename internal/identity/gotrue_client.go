package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spec-kit/dinewithus/internal/domain"
)

// RejectedError is a 4xx answer other than 401 or 403: the provider understood the
// request and refused it without rejecting the credential.
type RejectedError struct {
	Method string
	Path   string
	Status int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("identity provider rejected %s %s with %d", e.Method, e.Path, e.Status)
}

// GoTrueClient calls a GoTrue-compatible auth REST API (the hosted provider, or this
// service's development routes under /auth/v1).
type GoTrueClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewGoTrueClient builds a client for baseURL, e.g. "https://project.supabase.co".
func NewGoTrueClient(baseURL, apiKey string, httpClient *http.Client) *GoTrueClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoTrueClient{baseURL: baseURL, apiKey: apiKey, http: httpClient}
}

func (c *GoTrueClient) GetUser(ctx context.Context, accessToken string) (*domain.IdentityUser, error) {
	var user UserPayload
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	identity := user.IdentityUser()
	return &identity, nil
}

func (c *GoTrueClient) UpdateUserMetadata(ctx context.Context, accessToken string, data map[string]any) (*domain.IdentityUser, error) {
	var user UserPayload
	body := map[string]any{"data": data}
	if err := c.do(ctx, http.MethodPut, "/auth/v1/user", accessToken, body, &user); err != nil {
		return nil, err
	}
	identity := user.IdentityUser()
	return &identity, nil
}

func (c *GoTrueClient) SendOneTimeCode(ctx context.Context, email string) error {
	body := map[string]any{"email": email, "create_user": true}
	return c.do(ctx, http.MethodPost, "/auth/v1/otp", "", body, nil)
}

func (c *GoTrueClient) VerifyOneTimeCode(ctx context.Context, email, code string) (*domain.Session, error) {
	var session SessionPayload
	body := map[string]any{"type": "email", "email": email, "token": code}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/verify", "", body, &session); err != nil {
		return nil, err
	}
	return session.Session(), nil
}

func (c *GoTrueClient) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	var session SessionPayload
	body := map[string]any{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &session); err != nil {
		// GoTrue answers an unknown or spent refresh token with 400 invalid_grant.
		var rejected *RejectedError
		if errors.As(err, &rejected) && rejected.Status == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
		}
		return nil, err
	}
	return session.Session(), nil
}

func (c *GoTrueClient) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

func (c *GoTrueClient) do(ctx context.Context, method, path, accessToken string, body, out any) error {
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
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s %s returned %d", domain.ErrProviderUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s returned %d", domain.ErrInvalidCredential, method, path, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &RejectedError{Method: method, Path: path, Status: resp.StatusCode}
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
