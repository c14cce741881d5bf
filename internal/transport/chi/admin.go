package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/policy"
)

// ListUsers handles GET /users?page=&page_size=.
func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	var page, pageSize int
	if err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &page); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid format for parameter page")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "page_size", r.URL.Query(), &pageSize); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid format for parameter page_size")
		return
	}

	out, err := s.admin.ListBalances(r.Context(), mustPrincipal(r), page, pageSize)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]UserResponse, 0, len(out.Items))
	for _, a := range out.Items {
		items = append(items, accountToResponse(a))
	}
	writeJSON(w, http.StatusOK, UserListResponse{
		Items:    items,
		Total:    out.Total,
		Page:     out.Page,
		PageSize: out.PageSize,
		Pages:    out.Pages(),
	})
}

// GetUser handles GET /users/{id}.
func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	a, err := s.admin.GetAccount(r.Context(), mustPrincipal(r), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountToResponse(a))
}

// UpdateUser handles PATCH /users/{id}.
func (s *Server) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !s.decode(w, r, &req) {
		return
	}

	a, err := s.admin.UpdateAccount(r.Context(), mustPrincipal(r), chi.URLParam(r, "id"), account.Patch{
		Email:    req.Email,
		Active:   req.IsActive,
		Verified: req.IsVerified,
		Admin:    req.IsAdmin,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountToResponse(a))
}

// DeleteUser handles DELETE /users/{id}.
func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteAccount(r.Context(), mustPrincipal(r), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCredits handles PATCH /users/{id}/credits.
func (s *Server) SetCredits(w http.ResponseWriter, r *http.Request) {
	var req SetCreditsRequest
	if !s.decode(w, r, &req) {
		return
	}

	actor := mustPrincipal(r)
	if req.Credits == nil {
		// Policy first: a non-admin learns nothing about the body.
		if !policy.CanAdminister(actor) {
			s.handleDomainError(w, r, domain.ErrForbidden)
			return
		}
		s.handleDomainError(w, r, domain.NewValidationError("credits", "is required"))
		return
	}

	b, err := s.admin.SetCredits(r.Context(), actor, chi.URLParam(r, "id"), *req.Credits)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CreditsResponse{UserID: b.PrincipalID(), Credits: b.Credits()})
}
