package chi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
	"github.com/kailas-cloud/creditgate/internal/logger"
)

// Authenticator resolves a bearer token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (principal.Principal, error)
}

type principalKey struct{}

// ContextWithPrincipal stores the authenticated principal for handlers.
func ContextWithPrincipal(ctx context.Context, p principal.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal set by BearerAuthMiddleware.
func PrincipalFromContext(ctx context.Context) (principal.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal.Principal)
	return p, ok
}

// BearerAuthMiddleware validates the Bearer token on every request it wraps
// and puts the resolved principal into the request context.
func BearerAuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeUnauthorized(w, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, "authorization header must use Bearer scheme")
				return
			}

			p, err := auth.Authenticate(r.Context(), strings.TrimSpace(header[len(bearerPrefix):]))
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					logger.FromContext(r.Context()).Debug("authentication failed", zap.Error(err))
					writeUnauthorized(w, "invalid or expired token")
					return
				}
				logger.FromContext(r.Context()).Error("authentication error", zap.Error(err))
				if domain.IsRetryable(err) {
					writeError(w, http.StatusServiceUnavailable, ErrorResponseCodeStorageUnavailable,
						domain.ErrStorageUnavailable.Error())
					return
				}
				writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
				return
			}

			logger.Annotate(r.Context(), zap.String("principal_id", p.ID()))
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthorized, message)
}
