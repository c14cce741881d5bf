package main

import (
	"encoding/json"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/creditgate/internal/logger"
	chiTransport "github.com/kailas-cloud/creditgate/internal/transport/chi"
)

// jsonRecoverer turns handler panics into a 500 with the API error body.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rvr)
				}
				logger.Error("Handler panicked",
					zap.Any("panic", rvr),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
					zap.Stack("stacktrace"),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
					Code:    chiTransport.ErrorResponseCodeInternalError,
					Message: "internal error",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLog writes one canonical "http_request" line per request. Handlers
// below it add principal and balance fields through logger.Annotate, and get
// a request-scoped logger from logger.FromContext.
func requestLog(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := chiMiddleware.GetReqID(r.Context())
			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}

			scoped := logger.With(zap.String("request_id", reqID))
			ctx, annotations := logpkg.ContextWithAnnotations(logpkg.ContextWithLogger(r.Context(), scoped))

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := append([]zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			}, annotations.Fields()...)

			switch {
			case status >= http.StatusInternalServerError:
				scoped.Error("http_request", fields...)
			case status >= http.StatusBadRequest:
				scoped.Warn("http_request", fields...)
			default:
				scoped.Info("http_request", fields...)
			}
		})
	}
}
