package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lms-backend/pkg/utils"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// Stripe event types the reconciler reacts to.
const (
	eventCheckoutCompleted          = "checkout.session.completed"
	eventCheckoutAsyncSucceeded     = "checkout.session.async_payment_succeeded"
	eventCheckoutAsyncFailed        = "checkout.session.async_payment_failed"
	eventCheckoutExpired            = "checkout.session.expired"
	eventPaymentIntentSucceeded     = "payment_intent.succeeded"
	eventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
	eventPaymentIntentCanceled      = "payment_intent.canceled"
)

// StripeGateway implements Gateway on top of stripe-go. It is built once at
// startup and shared; it holds no mutable state.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	log           *zap.Logger
}

func NewStripeGateway(cfg utils.StripeConfig, log *zap.Logger) *StripeGateway {
	return newStripeGateway(cfg, nil, log)
}

func newStripeGateway(cfg utils.StripeConfig, backends *stripe.Backends, log *zap.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &StripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		log:           log.With(zap.String("gateway", "stripe")),
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.ProductName),
					},
					UnitAmount: stripe.Int64(p.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.UserID),
	}
	// Stripe rejects empty strings for optional fields.
	if p.Description != "" {
		params.LineItems[0].PriceData.ProductData.Description = stripe.String(p.Description)
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, p.UserID)
	params.AddMetadata(MetadataCourseID, p.CourseID)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, g.wrap("create checkout session", err)
	}

	g.log.Debug("Checkout session created",
		zap.String("session_id", s.ID),
		zap.String("course_id", p.CourseID),
		zap.Int64("amount", p.AmountMinor),
	)

	return toCheckoutSession(s), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, g.wrap("retrieve checkout session", err)
	}
	return toCheckoutSession(s), nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, p IntentParams) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(p.AmountMinor),
		Currency:           stripe.String(p.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, p.UserID)
	params.AddMetadata(MetadataCourseID, p.CourseID)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, g.wrap("create payment intent", err)
	}

	g.log.Debug("Payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.String("course_id", p.CourseID),
		zap.Int64("amount", p.AmountMinor),
	)

	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, g.wrap("retrieve payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

// ParseWebhook verifies the Stripe-Signature header over the exact payload
// bytes, then maps the event onto an Outcome.
//
// Each checkout flow has one completion event: hosted checkout completes on
// checkout.session.completed (paid) and embedded payment sheets complete on
// payment_intent.succeeded. Intents created internally by Checkout carry no
// course metadata and are ignored so a web payment is never applied twice.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type), Outcome: OutcomeIgnored}
	if evt.Data == nil {
		return out, nil
	}

	switch out.Type {
	case eventCheckoutCompleted, eventCheckoutAsyncSucceeded, eventCheckoutAsyncFailed, eventCheckoutExpired:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session from event %s: %w", evt.ID, err)
		}
		cs := toCheckoutSession(&s)
		out.Object = ObjectCheckoutSession
		out.Reference = cs.ID
		out.UserID = cs.UserID
		out.CourseID = cs.CourseID

		switch out.Type {
		case eventCheckoutCompleted:
			// Delayed payment methods complete unpaid and settle via async events.
			if cs.Paid {
				out.Outcome = OutcomeSucceeded
			}
		case eventCheckoutAsyncSucceeded:
			out.Outcome = OutcomeSucceeded
		default:
			out.Outcome = OutcomeFailed
		}

	case eventPaymentIntentSucceeded, eventPaymentIntentPaymentFailed, eventPaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent from event %s: %w", evt.ID, err)
		}
		intent := toPaymentIntent(&pi)
		if intent.CourseID == "" {
			return out, nil
		}
		out.Object = ObjectPaymentIntent
		out.Reference = intent.ID
		out.UserID = intent.UserID
		out.CourseID = intent.CourseID

		if out.Type == eventPaymentIntentSucceeded {
			out.Outcome = OutcomeSucceeded
		} else {
			out.Outcome = OutcomeFailed
		}
	}

	return out, nil
}

func (g *StripeGateway) wrap(op string, err error) error {
	msg := err.Error()
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		msg = stripeErr.Msg
	}

	g.log.Error("Stripe request failed", zap.String("op", op), zap.Error(err))
	return &ProviderError{Op: op, Msg: msg, Err: err}
}

func toCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	userID := s.Metadata[MetadataUserID]
	if userID == "" {
		userID = s.ClientReferenceID
	}
	return &CheckoutSession{
		ID:          s.ID,
		URL:         s.URL,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Expired:     s.Status == stripe.CheckoutSessionStatusExpired,
		UserID:      userID,
		CourseID:    s.Metadata[MetadataCourseID],
		AmountMinor: s.AmountTotal,
	}
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Succeeded:    pi.Status == stripe.PaymentIntentStatusSucceeded,
		Canceled:     pi.Status == stripe.PaymentIntentStatusCanceled,
		UserID:       pi.Metadata[MetadataUserID],
		CourseID:     pi.Metadata[MetadataCourseID],
	}
}
