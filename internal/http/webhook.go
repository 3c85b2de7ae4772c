package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/metrics"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/services"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

type webhookReceivedResponse struct {
	Received bool `json:"received"`
}

// handleStripeWebhook 验签后分发事件。验签失败不写入任何文档
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		status = http.StatusBadRequest
		respondError(w, status, errors.New("failed to read request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(signature) == "" {
		status = http.StatusBadRequest
		respondError(w, status, errors.New("missing Stripe signature"))
		return
	}

	result, err := s.svc.HandleWebhook(r.Context(), payload, signature)
	if result.EventType != "" {
		eventType = result.EventType
	}
	if err != nil {
		switch {
		case errors.Is(err, services.ErrWebhookSignature):
			log.Warn().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("Webhook signature verification failed")
			status = http.StatusBadRequest
			respondError(w, status, errors.New("webhook error: invalid Stripe signature"))
		case errors.Is(err, services.ErrInvalidRequest):
			status = http.StatusBadRequest
			respondError(w, status, err)
		case errors.Is(err, services.ErrStripeNotConfigured):
			status = http.StatusServiceUnavailable
			respondError(w, status, errors.New("webhook secret not configured"))
		default:
			status = http.StatusInternalServerError
			s.respondInternal(w, status, errors.New("processing failed"))
		}
		return
	}

	log.Debug().
		Str("event_id", result.EventID).
		Str("type", result.EventType).
		Str("kind", string(result.Kind)).
		Msg("Webhook received")
	respondJSON(w, http.StatusOK, webhookReceivedResponse{Received: true})
}
