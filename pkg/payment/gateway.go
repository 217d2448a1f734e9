// Package payment wraps the external payment provider behind a small interface
// so the enrollment flow can be exercised without network access.
package payment

import (
	"context"
	"errors"
)

// ErrInvalidSignature is returned when a webhook payload cannot be authenticated.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Metadata keys embedded in provider objects for correlation.
const (
	MetadataUserID   = "user_id"
	MetadataCourseID = "course_id"
)

// Gateway is the subset of provider operations the service depends on.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, params IntentParams) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	// ParseWebhook authenticates payload against the signature header before
	// decoding it.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// CheckoutParams describes a hosted checkout for a single course.
type CheckoutParams struct {
	UserID        string
	CourseID      string
	CustomerEmail string
	ProductName   string
	Description   string
	AmountMinor   int64
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// IntentParams describes a payment intent confirmed client-side.
type IntentParams struct {
	UserID       string
	CourseID     string
	ReceiptEmail string
	Description  string
	AmountMinor  int64
	Currency     string
}

type CheckoutSession struct {
	ID          string
	URL         string
	Paid        bool
	Expired     bool
	UserID      string
	CourseID    string
	AmountMinor int64
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Succeeded    bool
	Canceled     bool
	UserID       string
	CourseID     string
}

// Outcome is the business meaning of a provider event.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeIgnored   Outcome = "ignored"
)

// ObjectKind names the provider object an event refers to.
type ObjectKind string

const (
	ObjectCheckoutSession ObjectKind = "checkout_session"
	ObjectPaymentIntent   ObjectKind = "payment_intent"
)

// Event is a verified, normalised provider notification.
type Event struct {
	ID        string
	Type      string
	Outcome   Outcome
	Object    ObjectKind
	Reference string
	UserID    string
	CourseID  string
}

// ProviderError carries the provider's own message for diagnostics.
type ProviderError struct {
	Op  string
	Msg string
	Err error
}

func (e *ProviderError) Error() string {
	return e.Op + ": " + e.Msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
