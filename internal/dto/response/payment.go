package response

import (
	"time"

	"lms-backend/internal/data/entity"
)

type CheckoutSessionResponse struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
}

type PaymentIntentResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
}

type EnrollmentResponse struct {
	ID            string               `json:"id"`
	UserID        string               `json:"user_id"`
	CourseID      string               `json:"course_id"`
	PaymentStatus entity.PaymentStatus `json:"payment_status"`
	PaymentKind   entity.PaymentKind   `json:"payment_kind"`
	ProviderRef   string               `json:"provider_ref"`
	Amount        float64              `json:"amount"`
	Currency      string               `json:"currency"`
	EnrolledAt    *time.Time           `json:"enrolled_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// VerifyPaymentResponse is returned once a hosted checkout has been confirmed.
type VerifyPaymentResponse struct {
	Enrollment EnrollmentResponse `json:"enrollment"`
	Course     *CourseResponse    `json:"course,omitempty"`
}

type EnrollmentCheckResponse struct {
	Enrolled bool `json:"enrolled"`
}

func EnrollmentToResponse(e *entity.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:            e.ID.String(),
		UserID:        e.UserID.String(),
		CourseID:      e.CourseID.String(),
		PaymentStatus: e.PaymentStatus,
		PaymentKind:   e.PaymentKind,
		ProviderRef:   e.ProviderRef,
		Amount:        e.Amount,
		Currency:      e.Currency,
		EnrolledAt:    e.EnrolledAt,
		CreatedAt:     e.CreatedAt,
	}
}
