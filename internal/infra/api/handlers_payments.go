package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/adapter"
	"a2z-marketplace/internal/usecase"
)

const maxWebhookBytes = 64 << 10

type createPaymentRequest struct {
	Tier         model.Tier         `json:"tier"`
	Provider     model.Provider     `json:"provider"`
	BillingCycle model.BillingCycle `json:"billing_cycle"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	intent, err := s.payments.CreateIntent(r.Context(), usecase.CreateIntentInput{
		UserID:   UserID(r.Context()),
		Tier:     req.Tier,
		Provider: req.Provider,
		Billing:  req.BillingCycle,
	})
	if err != nil {
		// "already subscribed" is a bad request on this route
		s.failWith(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.payments.GetPayment(r.Context(), UserID(r.Context()), chi.URLParam(r, "reference"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleWebhook answers in plain text; providers only look at the status.
// Duplicates are acknowledged with 200 so the provider stops retrying.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(strings.ToLower(chi.URLParam(r, "provider")))
	if !provider.Valid() {
		writeText(w, http.StatusNotFound, "unknown provider")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeText(w, http.StatusBadRequest, "unreadable body")
		return
	}

	res, err := s.webhooks.Reconcile(r.Context(), provider, adapter.WebhookRequest{
		Body:      body,
		Signature: r.Header.Get("X-Signature"),
		RemoteIP:  s.clientIP(r),
	})
	if err != nil {
		switch status := statusFor(err, http.StatusConflict); status {
		case http.StatusUnauthorized:
			writeText(w, status, "unauthorized")
		case http.StatusNotFound:
			writeText(w, status, "unknown payment")
		case http.StatusBadRequest:
			writeText(w, status, "invalid notification")
		default:
			logFrom(r, s.log).Error().Err(err).Str("provider", string(provider)).Msg("webhook failed")
			writeText(w, http.StatusInternalServerError, "error")
		}
		return
	}
	if res.Duplicate {
		writeText(w, http.StatusOK, "OK (duplicate)")
		return
	}
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleFreeAccountReset(w http.ResponseWriter, r *http.Request) {
	report, err := s.reset.RunDailyReset(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			writeJSON(w, http.StatusConflict, errorBody{Error: "reset already running"})
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
