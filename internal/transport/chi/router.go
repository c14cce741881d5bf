package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mount registers every route on r. Routes that act on behalf of a principal
// sit behind BearerAuthMiddleware.
func Mount(r chi.Router, s *Server, auth Authenticator) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.Register)
		r.Post("/jwt/login", s.Login)
		r.Post("/forgot-password", s.ForgotPassword)
		r.Post("/reset-password", s.ResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(auth))

		r.Get("/users/me", s.GetMe)
		r.Patch("/users/me", s.PatchMe)
		r.Patch("/users/me/password", s.ChangePassword)

		r.Post("/api/sum", s.Sum)

		r.Get("/users", s.ListUsers)
		r.Get("/users/{id}", s.GetUser)
		r.Patch("/users/{id}", s.UpdateUser)
		r.Delete("/users/{id}", s.DeleteUser)
		r.Patch("/users/{id}/credits", s.SetCredits)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorResponseCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponseCodeBadRequest, "method not allowed")
	})
}

// CORS returns the cross-origin middleware. No origins disables it.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
