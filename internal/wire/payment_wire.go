package wire

import (
	"net/http"

	"lms-backend/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wirePayment(r chi.Router, paymentHandler *adaptor.PaymentHandler, auth func(http.Handler) http.Handler) {
	r.With(auth).Route("/api/payments", func(r chi.Router) {
		r.Post("/web-checkout", paymentHandler.WebCheckout)
		r.Post("/flutter-checkout", paymentHandler.EmbeddedCheckout)
		r.Get("/verify", paymentHandler.VerifyPayment) // ?session_id=cs_...
		r.Get("/check/{courseId}", paymentHandler.CheckEnrollment)
	})
}

// wireWebhook mounts the provider callback. The handler reads the raw body
// itself, so no body-decoding middleware may sit in front of it.
func wireWebhook(r chi.Router, paymentHandler *adaptor.PaymentHandler) {
	r.Post("/webhook", paymentHandler.Webhook)
}
