package httpapi

import (
	"net/http"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/services"

	"github.com/go-chi/chi/v5"
)

type createIdentitySessionRequest struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	StripeMode string `json:"stripeMode"`
}

func (s *Server) handleCreateIdentitySession(w http.ResponseWriter, r *http.Request) {
	var req createIdentitySessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v := &validator{}
	v.required("userId", req.UserID)
	v.email("email", req.Email)
	v.oneOf("role", req.Role, identityRoles)
	v.mode(req.StripeMode)
	if !v.ok() {
		respondValidation(w, v.errs)
		return
	}
	if !s.canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, services.ErrForbidden)
		return
	}

	result, err := s.svc.CreateVerificationSession(r.Context(), req.StripeMode, req.UserID, req.Email, req.Role)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleGetIdentitySession 原样返回 Stripe 的会话对象
func (s *Server) handleGetIdentitySession(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("stripeMode")
	v := &validator{}
	v.mode(mode)
	if !v.ok() {
		respondValidation(w, v.errs)
		return
	}
	session, err := s.svc.GetVerificationSession(r.Context(), mode, chi.URLParam(r, "sessionId"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}
