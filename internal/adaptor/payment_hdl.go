package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"lms-backend/internal/dto/request"
	"lms-backend/internal/usecase"
	"lms-backend/pkg/payment"
	"lms-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Stripe event payloads are well under this.
const maxWebhookBytes = 64 << 10

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// WebCheckout handles POST /api/payments/web-checkout
func (h *PaymentHandler) WebCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	session, err := h.service.StartWebCheckout(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create checkout session")
		return
	}

	utils.ResponseSuccess(w, "Checkout session created", session)
}

// EmbeddedCheckout handles POST /api/payments/flutter-checkout
func (h *PaymentHandler) EmbeddedCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	intent, err := h.service.StartEmbeddedCheckout(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create payment intent")
		return
	}

	utils.ResponseSuccess(w, "Payment intent created", intent)
}

// VerifyPayment handles GET /api/payments/verify?session_id=
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	result, err := h.service.VerifyPayment(r.Context(), userID, r.URL.Query().Get("session_id"))
	if err != nil {
		handleServiceError(w, h.log, err, "verify payment")
		return
	}

	utils.ResponseSuccess(w, "Payment verified, enrollment completed", result)
}

// CheckEnrollment handles GET /api/payments/check/{courseId}
func (h *PaymentHandler) CheckEnrollment(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	result, err := h.service.CheckEnrollment(r.Context(), userID, chi.URLParam(r, "courseId"))
	if err != nil {
		handleServiceError(w, h.log, err, "check enrollment")
		return
	}

	utils.ResponseSuccess(w, "Enrollment status retrieved", result)
}

// Webhook handles POST /webhook. The body is read unparsed so the signature
// can be checked over the exact bytes Stripe sent.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.log.Warn("Failed to read webhook body", zap.Error(err))
		utils.ResponseBadRequest(w, "Webhook error", nil)
		return
	}

	// Finish processing even if Stripe drops the connection.
	ctx := context.WithoutCancel(r.Context())

	if _, err := h.service.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			utils.ResponseBadRequest(w, "Webhook error", nil)
			return
		}
		h.log.Error("Webhook processing failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
