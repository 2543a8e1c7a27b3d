package server

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/letmevibethatforyou/promptplace/internal/auth"
	"github.com/letmevibethatforyou/promptplace/internal/payments"
)

type confirmRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

func (s *Server) handlePublishableKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publishableKey": s.app.Payments.PublishableKey()})
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var params payments.IntentParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if u, ok := auth.UserFromContext(r.Context()); ok {
		if params.Metadata == nil {
			params.Metadata = map[string]string{}
		}
		params.Metadata["userId"] = u.ID
	}

	intent, err := s.app.Payments.CreateIntent(r.Context(), params)
	if errors.Is(err, payments.ErrInvalidAmount) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	} else if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Int64("amount", params.Amount).Msg("Failed to create payment intent")
		writeError(w, http.StatusInternalServerError, "Failed to create payment intent")
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil || req.PaymentIntentID == "" {
		writeError(w, http.StatusBadRequest, "Missing paymentIntentId")
		return
	}

	conf, err := s.app.Payments.Confirm(r.Context(), req.PaymentIntentID)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("intent_id", req.PaymentIntentID).Msg("Failed to confirm payment")
		writeError(w, http.StatusInternalServerError, "Payment confirmation failed")
		return
	}
	writeJSON(w, http.StatusOK, conf)
}
