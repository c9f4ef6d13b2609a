// Package webhook implements the gateway webhook receiver. Razorpay signs
// the raw body with HMAC-SHA256 (hex) in the X-Razorpay-Signature header.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
)

type Service interface {
	VerifyFromWebhook(ctx context.Context, orderID, paymentID string) error
}

type Handler struct {
	log           *slog.Logger
	billing       Service
	webhookSecret string
}

func New(log *slog.Logger, billingService Service, secret string) *Handler {
	return &Handler{
		log:           log,
		billing:       billingService,
		webhookSecret: secret,
	}
}

// Payload is the subset of the gateway event the receiver reads.
type Payload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ServeHTTP godoc
// @Summary Gateway payment webhook
// @Description Receives signed payment events from the gateway and activates the matching pending order.
// @Tags Payments
// @Accept  json
// @Success 200 "Event processed"
// @Failure 400 "Malformed body"
// @Failure 401 "Missing or invalid signature"
// @Failure 500 "Processing failed"
// @Router /subscriptions/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Razorpay-Signature")
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch payload.Event {
	case "payment.captured", "payment.authorized":
		entity := payload.Payload.Payment.Entity
		if err := h.billing.VerifyFromWebhook(r.Context(), entity.OrderID, entity.ID); err != nil {
			log.Error("failed to process webhook event", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		log.Info("webhook processed successfully",
			slog.String("event", payload.Event),
			slog.String("payment_id", entity.ID))
	default:
		log.Info("ignored webhook event", slog.String("event", payload.Event))
	}

	w.WriteHeader(http.StatusOK)
}
