package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
	"github.com/kailas-cloud/creditgate/internal/logger"
	accountuc "github.com/kailas-cloud/creditgate/internal/usecase/account"
	adminuc "github.com/kailas-cloud/creditgate/internal/usecase/admin"
	computeuc "github.com/kailas-cloud/creditgate/internal/usecase/compute"
	healthuc "github.com/kailas-cloud/creditgate/internal/usecase/health"
	meteringuc "github.com/kailas-cloud/creditgate/internal/usecase/metering"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP request dispatcher.
type Server struct {
	accounts      *accountuc.Service
	metering      *meteringuc.Service
	compute       *computeuc.Service
	admin         *adminuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	accounts *accountuc.Service,
	metering *meteringuc.Service,
	compute *computeuc.Service,
	admin *adminuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		accounts: accounts,
		metering: metering,
		compute:  compute,
		admin:    admin,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrInsufficientCredits, http.StatusPaymentRequired, ErrorResponseCodeInsufficientCredits),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, ErrorResponseCodeForbidden),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, ErrorResponseCodeAlreadyExists),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, ErrorResponseCodeUnauthorized),
		sentinelHandler(domain.ErrInvalidCredentials, http.StatusBadRequest, ErrorResponseCodeInvalidCredentials),
		sentinelHandler(domain.ErrInvalidToken, http.StatusBadRequest, ErrorResponseCodeInvalidToken),
		sentinelHandler(domain.ErrStorageUnavailable, http.StatusServiceUnavailable, ErrorResponseCodeStorageUnavailable),
	}
	return s
}

// Register handles POST /auth/register.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}

	p, err := s.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userToResponse(p, nil))
}

// Login handles POST /auth/jwt/login. Accepts a form (username, password) or JSON.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if isJSON(r) {
		if !s.decode(w, r, &req) {
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "invalid form body")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}
	if req.Username == "" || req.Password == "" {
		s.handleDomainError(w, r, domain.NewValidationError("username", "username and password are required"))
		return
	}

	tok, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: tok.Token,
		TokenType:   "bearer",
		ExpiresIn:   int(time.Until(tok.ExpiresAt).Round(time.Second).Seconds()),
	})
}

// ForgotPassword handles POST /auth/forgot-password. Always 202 for a well-formed request.
func (s *Server) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ResetPassword handles POST /auth/reset-password.
func (s *Server) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMe handles GET /users/me. The balance is created on first access.
func (s *Server) GetMe(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)
	b, err := s.metering.Balance(r.Context(), p)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(p, &b))
}

// PatchMe handles PATCH /users/me. Self-service profile edits are not offered.
func (s *Server) PatchMe(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusForbidden, ErrorResponseCodeForbidden,
		"profile changes are not allowed here; use PATCH /users/me/password to change your password")
}

// ChangePassword handles PATCH /users/me/password.
func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.accounts.ChangePassword(r.Context(), mustPrincipal(r), req.CurrentPassword, req.NewPassword); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sum handles POST /api/sum, a metered operation.
func (s *Server) Sum(w http.ResponseWriter, r *http.Request) {
	var req SumRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.A == nil {
		s.handleDomainError(w, r, domain.NewValidationError("a", "is required"))
		return
	}
	if req.B == nil {
		s.handleDomainError(w, r, domain.NewValidationError("b", "is required"))
		return
	}

	res, err := s.compute.Sum(r.Context(), mustPrincipal(r), *req.A, *req.B)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SumResponse{Result: res.Value, CreditsRemaining: res.CreditsAfter})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return len(ct) >= len("application/json") && ct[:len("application/json")] == "application/json"
}

// mustPrincipal returns the principal placed by BearerAuthMiddleware.
// Routes using it are always mounted behind the middleware.
func mustPrincipal(r *http.Request) principal.Principal {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		panic("chi: handler mounted without BearerAuthMiddleware")
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInsufficientCredits) {
		return "insufficient credits: ask an administrator to top up your balance"
	}
	sentinels := []error{
		domain.ErrForbidden,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrUnauthorized,
		domain.ErrInvalidCredentials,
		domain.ErrInvalidToken,
		domain.ErrStorageUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler reports the offending field of a ValidationError.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	resp := ErrorResponse{Code: ErrorResponseCodeValidationFailed, Message: domain.ErrValidation.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
		resp.Message = ve.Field + ": " + ve.Message
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	l := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			if domain.IsRetryable(err) {
				l.Error("storage error", zap.Error(err))
			} else {
				l.Debug("domain error", zap.Error(err))
			}
			return
		}
	}
	l.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

func userToResponse(p principal.Principal, b *balance.Balance) UserResponse {
	resp := UserResponse{
		ID:         p.ID(),
		Email:      p.Email(),
		IsActive:   p.IsActive(),
		IsVerified: p.IsVerified(),
		IsAdmin:    p.IsAdmin(),
		CreatedAt:  time.UnixMilli(p.CreatedAt()).UTC(),
	}
	if b != nil {
		credits := b.Credits()
		resp.Credits = &credits
	}
	return resp
}

func accountToResponse(a account.Account) UserResponse {
	if b, ok := a.Balance(); ok {
		return userToResponse(a.Principal(), &b)
	}
	return userToResponse(a.Principal(), nil)
}
