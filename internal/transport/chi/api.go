package chi

import "time"

// ErrorResponseCode is the machine-readable error code in every error body.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest          ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed    ErrorResponseCode = "validation_failed"
	ErrorResponseCodeUnauthorized        ErrorResponseCode = "unauthorized"
	ErrorResponseCodeForbidden           ErrorResponseCode = "forbidden"
	ErrorResponseCodeInsufficientCredits ErrorResponseCode = "insufficient_credits"
	ErrorResponseCodeNotFound            ErrorResponseCode = "not_found"
	ErrorResponseCodeAlreadyExists       ErrorResponseCode = "already_exists"
	ErrorResponseCodeInvalidCredentials  ErrorResponseCode = "invalid_credentials"
	ErrorResponseCodeInvalidToken        ErrorResponseCode = "invalid_token"
	ErrorResponseCodeStorageUnavailable  ErrorResponseCode = "storage_unavailable"
	ErrorResponseCodeInternalError       ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
	Field   string            `json:"field,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the JSON form of POST /auth/jwt/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries an access token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ChangePasswordRequest is the body of PATCH /users/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UserResponse describes a principal. Credits is absent when no balance exists.
type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	IsAdmin    bool      `json:"is_admin"`
	CreatedAt  time.Time `json:"created_at"`
	Credits    *int64    `json:"credits,omitempty"`
}

// UserListResponse is one page of GET /users.
type UserListResponse struct {
	Items    []UserResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Pages    int            `json:"pages"`
}

// UpdateUserRequest is the body of PATCH /users/{id}.
type UpdateUserRequest struct {
	Email      *string `json:"email,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
	IsVerified *bool   `json:"is_verified,omitempty"`
	IsAdmin    *bool   `json:"is_admin,omitempty"`
}

// SetCreditsRequest is the body of PATCH /users/{id}/credits.
type SetCreditsRequest struct {
	Credits *int64 `json:"credits"`
}

// CreditsResponse reports a balance after an admin update.
type CreditsResponse struct {
	UserID  string `json:"user_id"`
	Credits int64  `json:"credits"`
}

// SumRequest is the body of POST /api/sum.
type SumRequest struct {
	A *int `json:"a"`
	B *int `json:"b"`
}

// SumResponse is the result of a metered sum.
type SumResponse struct {
	Result           int   `json:"result"`
	CreditsRemaining int64 `json:"credits_remaining"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
