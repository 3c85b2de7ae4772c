package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/config"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/pricing"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Version 由 main 在构建时注入
var Version = "1.1.0"

type Server struct {
	svc       *services.Service
	cfg       config.Config
	startedAt time.Time
}

func NewServer(svc *services.Service, cfg config.Config) *Server {
	return &Server{svc: svc, cfg: cfg, startedAt: time.Now()}
}

// loggingRecoverer 自定义的 panic 恢复中间件，记录详细的错误信息
func (s *Server) loggingRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				stack := debug.Stack()
				log.Error().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", rvr).
					Bytes("stack", stack).
					Msg("Panic recovered")

				if r.Header.Get("Connection") != "Upgrade" {
					body := ErrorResponse{Status: "error", Message: "Internal Server Error"}
					if s.cfg.IsDevelopment() {
						body.Message = fmt.Sprintf("internal server error: %v", rvr)
						body.Detail = string(stack)
					}
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(body)
				}
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestLogger 记录请求日志的中间件
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingRecoverer)
	r.Use(requestLogger)
	r.Use(s.corsMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// webhook 需要原始请求体验签
		r.Post("/webhooks/stripe", s.handleStripeWebhook)

		// 公开接口
		r.Get("/payments/config", s.handlePaymentConfig)
		r.Get("/pricing/one-time", s.handleOneTimePricing)
		r.Get("/pricing/subscription/plan", s.handleSubscriptionPricing)
		r.Get("/pricing/all", s.handleAllPricing)
		r.Get("/identity/session/{sessionId}", s.handleGetIdentitySession)

		// 需要认证的用户接口
		r.Group(func(r chi.Router) {
			r.Use(s.jwtMiddleware)

			r.Post("/payments/one-time/checkout-session", s.handleCreateCheckoutSession)
			r.Post("/payments/one-time/payment-intent", s.handleCreatePaymentIntent)
			r.Post("/payments/verify-session", s.handleVerifySession)
			r.Get("/payments/{id}", s.handleGetPayment)

			r.Post("/subscriptions", s.handleCreateSubscription)
			r.Delete("/subscriptions/{id}", s.handleCancelSubscription)
			r.Patch("/subscriptions/{id}", s.handleChangeSubscription)

			r.Post("/identity/create-session", s.handleCreateIdentitySession)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, fmt.Errorf("Can't find %s on this server!", r.URL.Path))
	})
	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,Stripe-Signature")
		w.Header().Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"message":     "Payment Service API",
		"version":     Version,
		"environment": s.cfg.AppEnv,
		"endpoints": map[string]string{
			"identity":      "/api/v1/identity",
			"payments":      "/api/v1/payments",
			"pricing":       "/api/v1/pricing",
			"subscriptions": "/api/v1/subscriptions",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Seconds(),
		"env":       s.cfg.AppEnv,
	})
}

// decodeBody 解析 JSON 请求体，失败时直接写回 400
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondValidation(w, []FieldError{{Message: "body is invalid JSON: " + err.Error()}})
		return false
	}
	return true
}

func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var upstreamErr *services.UpstreamError
	switch {
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, pricing.ErrNoPlan):
		respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrWebhookSignature):
		respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, services.ErrForbidden):
		respondError(w, http.StatusForbidden, err)
	case errors.Is(err, services.ErrConflict):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, services.ErrStripeNotConfigured):
		respondError(w, http.StatusServiceUnavailable, err)
	case errors.As(err, &upstreamErr):
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("op", upstreamErr.Op).
			Msg("Stripe API error")
		s.respondInternal(w, http.StatusBadGateway, err)
	default:
		// 对于未知错误，记录详细日志
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Internal server error")
		s.respondInternal(w, http.StatusInternalServerError, err)
	}
}

// respondInternal 只返回错误消息，开发环境附带完整错误链
func (s *Server) respondInternal(w http.ResponseWriter, status int, err error) {
	body := ErrorResponse{Status: "error", Message: err.Error()}
	if s.cfg.IsDevelopment() {
		body.Detail = fmt.Sprintf("%+v", err)
	}
	respondJSON(w, status, body)
}
