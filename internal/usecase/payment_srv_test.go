package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"lms-backend/internal/data/entity"
	"lms-backend/internal/dto/request"
	"lms-backend/pkg/payment"
	"lms-backend/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPaymentFixture(t *testing.T) (*memStore, *mockGateway, PaymentService) {
	t.Helper()
	store := newMemStore()
	gw := &mockGateway{}
	t.Cleanup(func() { gw.AssertExpectations(t) })

	svc := NewPaymentService(store.repository(), gw, utils.StripeConfig{
		Currency:     "egp",
		ClientDomain: "https://lms.example.com",
	}, zap.NewNop())
	return store, gw, svc
}

func checkoutEvent(ref string, outcome payment.Outcome) *payment.Event {
	return &payment.Event{
		ID:        "evt_" + ref,
		Type:      "checkout.session.completed",
		Outcome:   outcome,
		Object:    payment.ObjectCheckoutSession,
		Reference: ref,
	}
}

func TestStartWebCheckout_UnknownCourse(t *testing.T) {
	// Setup
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")

	// Execute
	_, err := svc.StartWebCheckout(context.Background(), user.ID, &request.CheckoutRequest{CourseID: uuid.NewString()})

	// Verify
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCourseNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.enrollmentCount())
	gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestStartCheckout_InvalidCourseID(t *testing.T) {
	store, _, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")

	tests := []struct {
		name     string
		courseID string
	}{
		{"missing", ""},
		{"not a uuid", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartEmbeddedCheckout(context.Background(), user.ID, &request.CheckoutRequest{CourseID: tt.courseID})

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, "courseId")
		})
	}
	assert.Equal(t, 0, store.enrollmentCount())
}

func TestStartCheckout_AlreadyCompleted(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_done", entity.PaymentStatusCompleted)
	req := &request.CheckoutRequest{CourseID: course.ID.String()}

	_, err := svc.StartWebCheckout(context.Background(), user.ID, req)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	_, err = svc.StartEmbeddedCheckout(context.Background(), user.ID, req)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	assert.Equal(t, 1, store.enrollmentCount())
	gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
}

func TestStartCheckout_RetryAfterFailedAttempt(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_old", entity.PaymentStatusFailed)

	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(&payment.CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.com/c/cs_new"}, nil).Once()

	resp, err := svc.StartWebCheckout(context.Background(), user.ID, &request.CheckoutRequest{CourseID: course.ID.String()})

	require.NoError(t, err)
	assert.Equal(t, "cs_new", resp.SessionID)
	assert.Equal(t, 2, store.enrollmentCount())
}

func TestStartWebCheckout_CreatesPendingEnrollment(t *testing.T) {
	// Setup
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100.00)

	gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p payment.CheckoutParams) bool {
		return p.AmountMinor == 10000 &&
			p.Currency == "egp" &&
			p.UserID == user.ID.String() &&
			p.CourseID == course.ID.String() &&
			p.CustomerEmail == "alice@example.com" &&
			p.ProductName == "Go Basics" &&
			p.SuccessURL == "https://lms.example.com/payment/success?session_id={CHECKOUT_SESSION_ID}" &&
			p.CancelURL == "https://lms.example.com/payment/cancel"
	})).Return(&payment.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil).Once()

	// Execute
	resp, err := svc.StartWebCheckout(context.Background(), user.ID, &request.CheckoutRequest{CourseID: course.ID.String()})

	// Verify
	require.NoError(t, err)
	assert.Equal(t, "cs_1", resp.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", resp.CheckoutURL)

	e := store.enrollment("cs_1")
	require.NotNil(t, e)
	assert.Equal(t, entity.PaymentStatusPending, e.PaymentStatus)
	assert.Equal(t, entity.PaymentKindCheckoutSession, e.PaymentKind)
	assert.Equal(t, user.ID, e.UserID)
	assert.Equal(t, course.ID, e.CourseID)
	assert.Equal(t, 100.00, e.Amount)
	assert.Equal(t, "egp", e.Currency)
	assert.Nil(t, e.EnrolledAt)

	// Membership is added optimistically
	ids, _ := store.repository().Course.FindMemberCourseIDs(context.Background(), user.ID)
	assert.Equal(t, []uuid.UUID{course.ID}, ids)
}

func TestStartEmbeddedCheckout_ReturnsClientSecret(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("bob@example.com")
	course := store.addCourse("Flutter Payments", 49.99)

	gw.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(p payment.IntentParams) bool {
		return p.AmountMinor == 4999 && p.CourseID == course.ID.String() && p.ReceiptEmail == "bob@example.com"
	})).Return(&payment.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret_abc"}, nil).Once()

	resp, err := svc.StartEmbeddedCheckout(context.Background(), user.ID, &request.CheckoutRequest{CourseID: course.ID.String()})

	require.NoError(t, err)
	assert.Equal(t, "pi_1", resp.PaymentIntentID)
	assert.Equal(t, "pi_1_secret_abc", resp.ClientSecret)

	e := store.enrollment("pi_1")
	require.NotNil(t, e)
	assert.Equal(t, entity.PaymentKindPaymentIntent, e.PaymentKind)
	assert.Equal(t, entity.PaymentStatusPending, e.PaymentStatus)
}

func TestStartWebCheckout_ProviderFailure(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)

	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(nil, &payment.ProviderError{Op: "create checkout session", Msg: "Invalid currency: egp"}).Once()

	_, err := svc.StartWebCheckout(context.Background(), user.ID, &request.CheckoutRequest{CourseID: course.ID.String()})

	var perr *payment.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Invalid currency: egp", perr.Msg)
	assert.Equal(t, 0, store.enrollmentCount())
}

func TestHandleWebhook_InvalidSignatureMutatesNothing(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_1", entity.PaymentStatusPending)

	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_status":"paid"}}}`)
	gw.On("ParseWebhook", payload, "t=1,v1=forged").
		Return(nil, fmt.Errorf("%w: signature mismatch", payment.ErrInvalidSignature)).Once()

	_, err := svc.HandleWebhook(context.Background(), payload, "t=1,v1=forged")

	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	assert.Equal(t, entity.PaymentStatusPending, store.enrollment("cs_1").PaymentStatus)
}

func TestHandleWebhook_CompletesExactlyOnce(t *testing.T) {
	// Setup
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_1", entity.PaymentStatusPending)

	payload := []byte("event")
	gw.On("ParseWebhook", payload, "sig").Return(checkoutEvent("cs_1", payment.OutcomeSucceeded), nil).Twice()

	// Execute
	first, err := svc.HandleWebhook(context.Background(), payload, "sig")
	require.NoError(t, err)
	completed := store.enrollment("cs_1")

	second, err := svc.HandleWebhook(context.Background(), payload, "sig")
	require.NoError(t, err)

	// Verify
	assert.Equal(t, ActionCompleted, first)
	assert.Equal(t, ActionUnchanged, second)

	after := store.enrollment("cs_1")
	assert.Equal(t, entity.PaymentStatusCompleted, after.PaymentStatus)
	require.NotNil(t, after.EnrolledAt)
	assert.Equal(t, *completed.EnrolledAt, *after.EnrolledAt)
}

func TestHandleWebhook_UnmatchedReferenceIsAcknowledged(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_1", entity.PaymentStatusPending)

	gw.On("ParseWebhook", mock.Anything, mock.Anything).Return(checkoutEvent("cs_unknown", payment.OutcomeSucceeded), nil).Once()

	action, err := svc.HandleWebhook(context.Background(), []byte("event"), "sig")

	require.NoError(t, err)
	assert.Equal(t, ActionNotFound, action)
	assert.Equal(t, 1, store.enrollmentCount())
	assert.Equal(t, entity.PaymentStatusPending, store.enrollment("cs_1").PaymentStatus)
}

func TestHandleWebhook_IgnoredEvent(t *testing.T) {
	_, gw, svc := newPaymentFixture(t)
	gw.On("ParseWebhook", mock.Anything, mock.Anything).
		Return(&payment.Event{ID: "evt_1", Type: "customer.created", Outcome: payment.OutcomeIgnored}, nil).Once()

	action, err := svc.HandleWebhook(context.Background(), []byte("event"), "sig")

	require.NoError(t, err)
	assert.Equal(t, ActionIgnored, action)
}

func TestHandleWebhook_FailureThenRetriedIntent(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindPaymentIntent, "pi_1", entity.PaymentStatusPending)

	failed := &payment.Event{ID: "evt_1", Outcome: payment.OutcomeFailed, Object: payment.ObjectPaymentIntent, Reference: "pi_1"}
	succeeded := &payment.Event{ID: "evt_2", Outcome: payment.OutcomeSucceeded, Object: payment.ObjectPaymentIntent, Reference: "pi_1"}
	gw.On("ParseWebhook", []byte("failed"), "sig").Return(failed, nil).Once()
	gw.On("ParseWebhook", []byte("succeeded"), "sig").Return(succeeded, nil).Once()

	action, err := svc.HandleWebhook(context.Background(), []byte("failed"), "sig")
	require.NoError(t, err)
	assert.Equal(t, ActionFailed, action)
	assert.Equal(t, entity.PaymentStatusFailed, store.enrollment("pi_1").PaymentStatus)

	// The payer can retry the same intent with another card.
	action, err = svc.HandleWebhook(context.Background(), []byte("succeeded"), "sig")
	require.NoError(t, err)
	assert.Equal(t, ActionCompleted, action)
	assert.Equal(t, entity.PaymentStatusCompleted, store.enrollment("pi_1").PaymentStatus)
}

func TestHandleWebhook_WrongObjectKindDoesNotMatch(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindCheckoutSession, "ref_1", entity.PaymentStatusPending)

	evt := &payment.Event{ID: "evt_1", Outcome: payment.OutcomeSucceeded, Object: payment.ObjectPaymentIntent, Reference: "ref_1"}
	gw.On("ParseWebhook", mock.Anything, mock.Anything).Return(evt, nil).Once()

	action, err := svc.HandleWebhook(context.Background(), []byte("event"), "sig")

	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, action)
	assert.Equal(t, entity.PaymentStatusPending, store.enrollment("ref_1").PaymentStatus)
}

func TestHandleWebhook_SecondPaymentForCompletedPair(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_1", entity.PaymentStatusCompleted)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindPaymentIntent, "pi_2", entity.PaymentStatusPending)

	evt := &payment.Event{ID: "evt_2", Outcome: payment.OutcomeSucceeded, Object: payment.ObjectPaymentIntent, Reference: "pi_2"}
	gw.On("ParseWebhook", mock.Anything, mock.Anything).Return(evt, nil).Once()

	action, err := svc.HandleWebhook(context.Background(), []byte("event"), "sig")

	require.NoError(t, err)
	assert.Equal(t, ActionRefundRequired, action)
	assert.Equal(t, entity.PaymentStatusCompleted, store.enrollment("cs_1").PaymentStatus)
	assert.Equal(t, entity.PaymentStatusFailed, store.enrollment("pi_2").PaymentStatus)
	assert.True(t, store.enrollment("pi_2").RefundRequired)
}

func TestHandleWebhook_DuplicatePaymentFlaggedOnce(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_1", entity.PaymentStatusCompleted)
	// A card decline left this intent failed before the payer retried it.
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindPaymentIntent, "pi_2", entity.PaymentStatusFailed)

	evt := &payment.Event{ID: "evt_2", Outcome: payment.OutcomeSucceeded, Object: payment.ObjectPaymentIntent, Reference: "pi_2"}
	gw.On("ParseWebhook", mock.Anything, mock.Anything).Return(evt, nil).Times(3)

	first, err := svc.HandleWebhook(context.Background(), []byte("event"), "sig")
	require.NoError(t, err)
	assert.Equal(t, ActionRefundRequired, first)

	for range 2 {
		again, err := svc.HandleWebhook(context.Background(), []byte("event"), "sig")
		require.NoError(t, err)
		assert.Equal(t, ActionUnchanged, again)
	}

	assert.True(t, store.enrollment("pi_2").RefundRequired)
	assert.Equal(t, entity.PaymentStatusFailed, store.enrollment("pi_2").PaymentStatus)
	assert.Equal(t, entity.PaymentStatusCompleted, store.enrollment("cs_1").PaymentStatus)
	gw.AssertExpectations(t)
}

func TestPaymentFlow_CheckoutToVerification(t *testing.T) {
	// Setup
	store, gw, svc := newPaymentFixture(t)
	ctx := context.Background()
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100.00)

	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(&payment.CheckoutSession{ID: "cs_S", URL: "https://checkout.stripe.com/c/cs_S"}, nil).Once()
	gw.On("ParseWebhook", mock.Anything, mock.Anything).Return(checkoutEvent("cs_S", payment.OutcomeSucceeded), nil).Once()
	gw.On("GetCheckoutSession", mock.Anything, "cs_S").Return(&payment.CheckoutSession{ID: "cs_S", Paid: true}, nil).Once()

	// Start checkout
	resp, err := svc.StartWebCheckout(ctx, user.ID, &request.CheckoutRequest{CourseID: course.ID.String()})
	require.NoError(t, err)
	require.Equal(t, "cs_S", resp.SessionID)
	assert.Equal(t, entity.PaymentStatusPending, store.enrollment("cs_S").PaymentStatus)

	check, err := svc.CheckEnrollment(ctx, user.ID, course.ID.String())
	require.NoError(t, err)
	assert.False(t, check.Enrolled)

	// Provider confirms
	action, err := svc.HandleWebhook(ctx, []byte("event"), "sig")
	require.NoError(t, err)
	assert.Equal(t, ActionCompleted, action)
	assert.Equal(t, entity.PaymentStatusCompleted, store.enrollment("cs_S").PaymentStatus)

	// Verify
	check, err = svc.CheckEnrollment(ctx, user.ID, course.ID.String())
	require.NoError(t, err)
	assert.True(t, check.Enrolled)

	verified, err := svc.VerifyPayment(ctx, user.ID, "cs_S")
	require.NoError(t, err)
	require.NotNil(t, verified.Course)
	assert.Equal(t, course.ID.String(), verified.Course.ID)
	assert.Equal(t, entity.PaymentStatusCompleted, verified.Enrollment.PaymentStatus)

	// A second checkout for the same pair is refused
	_, err = svc.StartWebCheckout(ctx, user.ID, &request.CheckoutRequest{CourseID: course.ID.String()})
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	assert.Equal(t, 1, store.enrollmentCount())
}

func TestVerifyPayment_Errors(t *testing.T) {
	store, gw, svc := newPaymentFixture(t)
	ctx := context.Background()
	alice := store.addUser("alice@example.com")
	bob := store.addUser("bob@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(alice.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_pending", entity.PaymentStatusPending)
	store.addEnrollment(alice.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_done", entity.PaymentStatusCompleted)

	gw.On("GetCheckoutSession", mock.Anything, "cs_unpaid").Return(&payment.CheckoutSession{ID: "cs_unpaid"}, nil)
	gw.On("GetCheckoutSession", mock.Anything, "cs_pending").Return(&payment.CheckoutSession{ID: "cs_pending", Paid: true}, nil)
	gw.On("GetCheckoutSession", mock.Anything, "cs_done").Return(&payment.CheckoutSession{ID: "cs_done", Paid: true}, nil)
	gw.On("GetCheckoutSession", mock.Anything, "cs_broken").
		Return(nil, &payment.ProviderError{Op: "retrieve checkout session", Msg: "No such checkout.session"})

	t.Run("missing session id", func(t *testing.T) {
		_, err := svc.VerifyPayment(ctx, alice.ID, "")
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("not paid at provider", func(t *testing.T) {
		_, err := svc.VerifyPayment(ctx, alice.ID, "cs_unpaid")
		assert.ErrorIs(t, err, ErrPaymentNotCompleted)
	})

	t.Run("paid but webhook not applied yet", func(t *testing.T) {
		_, err := svc.VerifyPayment(ctx, alice.ID, "cs_pending")
		assert.ErrorIs(t, err, ErrPaymentNotCompleted)
		assert.Equal(t, entity.PaymentStatusPending, store.enrollment("cs_pending").PaymentStatus)
	})

	t.Run("someone else's session", func(t *testing.T) {
		_, err := svc.VerifyPayment(ctx, bob.ID, "cs_done")
		assert.ErrorIs(t, err, ErrEnrollmentNotFound)
	})

	t.Run("provider failure", func(t *testing.T) {
		_, err := svc.VerifyPayment(ctx, alice.ID, "cs_broken")
		var perr *payment.ProviderError
		assert.True(t, errors.As(err, &perr))
	})
}

func TestCheckEnrollment_Errors(t *testing.T) {
	store, _, svc := newPaymentFixture(t)
	user := store.addUser("alice@example.com")

	_, err := svc.CheckEnrollment(context.Background(), user.ID, "")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.CheckEnrollment(context.Background(), user.ID, "not-a-uuid")
	assert.True(t, errors.As(err, &verr))

	_, err = svc.CheckEnrollment(context.Background(), user.ID, uuid.NewString())
	assert.ErrorIs(t, err, ErrCourseNotFound)
}
