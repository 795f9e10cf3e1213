package dto

// OneTimeCodeRequest starts a passwordless sign-in.
type OneTimeCodeRequest struct {
	Email string `json:"email"`
}

// VerifyRequest completes a passwordless sign-in.
type VerifyRequest struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// RefreshRequest exchanges a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateUserRequest merges user metadata.
type UpdateUserRequest struct {
	Data map[string]any `json:"data"`
}
