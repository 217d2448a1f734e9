package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentKind records which provider object ProviderRef points at.
type PaymentKind string

const (
	PaymentKindCheckoutSession PaymentKind = "checkout_session"
	PaymentKindPaymentIntent   PaymentKind = "payment_intent"
)

type Enrollment struct {
	BaseNoDelete
	UserID         uuid.UUID     `db:"user_id"`
	CourseID       uuid.UUID     `db:"course_id"`
	PaymentStatus  PaymentStatus `db:"payment_status"`
	PaymentKind    PaymentKind   `db:"payment_kind"`
	ProviderRef    string        `db:"provider_ref"`
	Amount         float64       `db:"amount"`
	Currency       string        `db:"currency"`
	EnrolledAt     *time.Time    `db:"enrolled_at"`
	LastCheckedAt  *time.Time    `db:"last_checked_at"` // last reconciler look at a row it left pending
	RefundRequired bool          `db:"refund_required"`
}

func (e *Enrollment) IsCompleted() bool {
	return e.PaymentStatus == PaymentStatusCompleted
}
