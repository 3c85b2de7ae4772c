package httpapi

import (
	"net/http"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/services"

	"github.com/go-chi/chi/v5"
)

type oneTimePaymentRequest struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Country    string `json:"country"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
	StripeMode string `json:"stripeMode"`
}

func (req oneTimePaymentRequest) validate(withURLs bool) *validator {
	v := &validator{}
	v.required("userId", req.UserID)
	v.email("email", req.Email)
	v.oneOf("role", req.Role, paymentRoles)
	v.country("country", req.Country)
	if withURLs {
		v.url("successUrl", req.SuccessURL)
		v.url("cancelUrl", req.CancelURL)
	}
	v.mode(req.StripeMode)
	return v
}

type verifySessionRequest struct {
	UserID     string `json:"userId"`
	SessionID  string `json:"sessionId"`
	StripeMode string `json:"stripeMode"`
}

func (s *Server) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req oneTimePaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if v := req.validate(true); !v.ok() {
		respondValidation(w, v.errs)
		return
	}
	if !s.canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, services.ErrForbidden)
		return
	}

	result, err := s.svc.CreateCheckoutSession(r.Context(), services.CheckoutRequest{
		UserID:     req.UserID,
		Email:      req.Email,
		Role:       req.Role,
		Country:    req.Country,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Mode:       req.StripeMode,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, result)
}

func (s *Server) handleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req oneTimePaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if v := req.validate(false); !v.ok() {
		respondValidation(w, v.errs)
		return
	}
	if !s.canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, services.ErrForbidden)
		return
	}

	result, err := s.svc.CreatePaymentIntent(r.Context(), services.PaymentIntentRequest{
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
	respondSuccess(w, http.StatusOK, result)
}

// handleVerifySession 支付页返回后由前端调用，直接返回 {status, message, verified}
func (s *Server) handleVerifySession(w http.ResponseWriter, r *http.Request) {
	var req verifySessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v := &validator{}
	v.required("userId", req.UserID)
	v.required("sessionId", req.SessionID)
	v.mode(req.StripeMode)
	if !v.ok() {
		respondValidation(w, v.errs)
		return
	}
	if !s.canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, services.ErrForbidden)
		return
	}

	result, err := s.svc.VerifySession(r.Context(), req.StripeMode, req.UserID, req.SessionID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handlePaymentConfig(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{
		"publishableKey": s.cfg.Stripe(s.cfg.StripeMode).PublishableKey,
		"mode":           s.cfg.StripeMode,
	})
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := s.svc.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if !s.canAccessUser(r.Context(), payment.UserID) {
		respondError(w, http.StatusForbidden, services.ErrForbidden)
		return
	}
	respondSuccess(w, http.StatusOK, payment)
}
