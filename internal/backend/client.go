// Package backend calls the external dinner backend: advisory role sync during role
// selection and the pass-through routes of the proxy API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotConfigured is returned when no backend base URL is set.
var ErrNotConfigured = errors.New("backend API URL not configured")

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s returned %d", e.Method, e.Path, e.Status)
}

// Response is a raw backend reply relayed by the proxy routes.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Message extracts the backend's "message" field, if any.
func (r *Response) Message() string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &payload); err != nil {
		return ""
	}
	return payload.Message
}

// Client talks to the backend over HTTP. The caller's bearer token is forwarded as is.
type Client struct {
	baseURL string
	hostBio string
	http    *http.Client
}

// NewClient builds a client; an empty baseURL yields a client whose calls fail with
// ErrNotConfigured.
func NewClient(baseURL, hostBio string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		hostBio: hostBio,
		http:    &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// UpdateRole tells the backend's authorization system about a role change.
func (c *Client) UpdateRole(ctx context.Context, accessToken, role string) error {
	return c.expectOK(ctx, http.MethodPost, "/auth/update-role", accessToken, map[string]string{"role": role})
}

// InitHostProfile creates or updates the caller's host profile. The backend treats the
// PATCH as an upsert, so repeating it is harmless.
func (c *Client) InitHostProfile(ctx context.Context, accessToken string) error {
	return c.expectOK(ctx, http.MethodPatch, "/hosts/@me", accessToken, map[string]string{"bio": c.hostBio})
}

// ListDinners forwards a dinner search.
func (c *Client) ListDinners(ctx context.Context, query url.Values) (*Response, error) {
	path := "/dinners"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return c.Do(ctx, http.MethodGet, path, "", nil)
}

// GetDinner fetches one dinner.
func (c *Client) GetDinner(ctx context.Context, id string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, "/dinners/"+url.PathEscape(id), "", nil)
}

// CreateDinner forwards a host's new dinner.
func (c *Client) CreateDinner(ctx context.Context, accessToken string, body []byte) (*Response, error) {
	return c.Do(ctx, http.MethodPost, "/dinners", accessToken, body)
}

// CreateBooking forwards a guest's booking.
func (c *Client) CreateBooking(ctx context.Context, accessToken, dinnerID string, body []byte) (*Response, error) {
	return c.Do(ctx, http.MethodPost, "/dinners/"+url.PathEscape(dinnerID)+"/bookings", accessToken, body)
}

// MyBookings lists the caller's bookings.
func (c *Client) MyBookings(ctx context.Context, accessToken string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, "/users/@me/bookings", accessToken, nil)
}

// HostProfile fetches the caller's host profile as the backend sees it.
func (c *Client) HostProfile(ctx context.Context, accessToken string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, "/hosts/@me", accessToken, nil)
}

// CurrentUser fetches the caller as the backend sees it.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, "/users/@me", accessToken, nil)
}

func (c *Client) expectOK(ctx context.Context, method, path, accessToken string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, method, path, accessToken, body)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{Method: method, Path: path, Status: resp.Status, Body: string(resp.Body)}
	}
	return nil
}

// Do performs one request and reads the whole body.
func (c *Client) Do(ctx context.Context, method, path, accessToken string, body []byte) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read backend %s %s: %w", method, path, err)
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}
