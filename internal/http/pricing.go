package httpapi

import (
	"net/http"
)

func pricingQuery(r *http.Request) (role, country string, v *validator) {
	role = r.URL.Query().Get("role")
	country = r.URL.Query().Get("country")
	v = &validator{}
	v.required("role", role)
	v.country("country", country)
	return role, country, v
}

func (s *Server) handleOneTimePricing(w http.ResponseWriter, r *http.Request) {
	role, country, v := pricingQuery(r)
	if !v.ok() {
		respondValidation(w, v.errs)
		return
	}
	respondSuccess(w, http.StatusOK, s.svc.Pricing().QuoteFor(role, country))
}

func (s *Server) handleSubscriptionPricing(w http.ResponseWriter, r *http.Request) {
	role, country, v := pricingQuery(r)
	if !v.ok() {
		respondValidation(w, v.errs)
		return
	}
	planID, err := s.svc.Pricing().PlanFor(role, country)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{
		"planId":  planID,
		"role":    role,
		"country": country,
	})
}

func (s *Server) handleAllPricing(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, s.svc.Pricing())
}
