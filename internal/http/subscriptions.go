package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/services"

	"github.com/go-chi/chi/v5"
)

type createSubscriptionRequest struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Country    string `json:"country"`
	StripeMode string `json:"stripeMode"`
}

type subscriptionActionRequest struct {
	UserID     string `json:"userId"`
	Role       string `json:"role"`
	Country    string `json:"country"`
	StripeMode string `json:"stripeMode"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v := &validator{}
	v.required("userId", req.UserID)
	v.email("email", req.Email)
	v.oneOf("role", req.Role, subscriptionRoles)
	v.country("country", req.Country)
	v.mode(req.StripeMode)
	if !v.ok() {
		respondValidation(w, v.errs)
		return
	}
	if !s.canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, services.ErrForbidden)
		return
	}

	result, err := s.svc.CreateSubscription(r.Context(), services.SubscriptionRequest{
		UserID:  req.UserID,
		Email:   req.Email,
		Role:    req.Role,
		Country: req.Country,
		Mode:    req.StripeMode,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, result)
}

// decodeAction 解析订阅操作请求体。请求体可以为空，此时 userId 取自令牌
func (s *Server) decodeAction(w http.ResponseWriter, r *http.Request) (subscriptionActionRequest, bool) {
	var req subscriptionActionRequest
	if r.Body != nil {
		if err := decodeJSON(r.Body, &req); err != nil {
			respondValidation(w, []FieldError{{Message: "body is invalid JSON: " + err.Error()}})
			return req, false
		}
	}
	if req.UserID == "" {
		req.UserID = getUserIDFromContext(r.Context())
	}
	return req, true
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAction(w, r)
	if !ok {
		return
	}
	v := &validator{}
	v.required("userId", req.UserID)
	v.mode(req.StripeMode)
	if !v.ok() {
		respondValidation(w, v.errs)
		return
	}
	if !s.canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, services.ErrForbidden)
		return
	}

	result, err := s.svc.CancelSubscription(r.Context(), req.StripeMode, req.UserID, chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, result)
}

func (s *Server) handleChangeSubscription(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAction(w, r)
	if !ok {
		return
	}
	v := &validator{}
	v.required("userId", req.UserID)
	v.oneOf("role", req.Role, subscriptionRoles)
	v.country("country", req.Country)
	v.mode(req.StripeMode)
	if !v.ok() {
		respondValidation(w, v.errs)
		return
	}
	if !s.canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, services.ErrForbidden)
		return
	}

	updated, err := s.svc.ChangeSubscription(r.Context(), req.StripeMode, req.UserID, chi.URLParam(r, "id"), req.Role, req.Country)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, updated)
}

// decodeJSON 与 decodeBody 相同，但允许空请求体
func decodeJSON(body io.Reader, v any) error {
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
