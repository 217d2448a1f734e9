package usecase

import (
	"context"
	"fmt"
	"time"

	"lms-backend/internal/data/entity"
	"lms-backend/internal/data/repository"
	"lms-backend/internal/dto/request"
	"lms-backend/internal/dto/response"
	"lms-backend/pkg/payment"
	"lms-backend/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentService interface {
	// Checkout initiation
	StartWebCheckout(ctx context.Context, userID uuid.UUID, req *request.CheckoutRequest) (*response.CheckoutSessionResponse, error)
	StartEmbeddedCheckout(ctx context.Context, userID uuid.UUID, req *request.CheckoutRequest) (*response.PaymentIntentResponse, error)

	// HandleWebhook only returns an error when the payload fails
	// authentication. Anything that goes wrong afterwards is logged.
	HandleWebhook(ctx context.Context, payload []byte, signature string) (SettleAction, error)

	// Read-only queries
	VerifyPayment(ctx context.Context, userID uuid.UUID, sessionID string) (*response.VerifyPaymentResponse, error)
	CheckEnrollment(ctx context.Context, userID uuid.UUID, courseID string) (*response.EnrollmentCheckResponse, error)
}

type paymentService struct {
	repo    *repository.Repository
	gateway payment.Gateway
	config  utils.StripeConfig
	settler *settler
	log     *zap.Logger
}

func NewPaymentService(
	repo *repository.Repository,
	gateway payment.Gateway,
	config utils.StripeConfig,
	log *zap.Logger,
) PaymentService {
	log = log.With(zap.String("service", "payment"))
	return &paymentService{
		repo:    repo,
		gateway: gateway,
		config:  config,
		settler: newSettler(repo.Enrollment, log),
		log:     log,
	}
}

func (s *paymentService) StartWebCheckout(ctx context.Context, userID uuid.UUID, req *request.CheckoutRequest) (*response.CheckoutSessionResponse, error) {
	user, course, err := s.prepareCheckout(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutParams{
		UserID:        user.ID.String(),
		CourseID:      course.ID.String(),
		CustomerEmail: user.Email,
		ProductName:   course.Title,
		Description:   deref(course.Description),
		AmountMinor:   utils.ToMinorUnits(course.Price),
		Currency:      s.config.Currency,
		SuccessURL:    s.config.ClientDomain + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.config.ClientDomain + "/payment/cancel",
	})
	if err != nil {
		return nil, fmt.Errorf("start web checkout for course %s: %w", course.ID.String(), err)
	}

	if err := s.recordPending(ctx, user, course, entity.PaymentKindCheckoutSession, session.ID); err != nil {
		return nil, err
	}

	return &response.CheckoutSessionResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

func (s *paymentService) StartEmbeddedCheckout(ctx context.Context, userID uuid.UUID, req *request.CheckoutRequest) (*response.PaymentIntentResponse, error) {
	user, course, err := s.prepareCheckout(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.IntentParams{
		UserID:       user.ID.String(),
		CourseID:     course.ID.String(),
		ReceiptEmail: user.Email,
		Description:  "Enrollment in " + course.Title,
		AmountMinor:  utils.ToMinorUnits(course.Price),
		Currency:     s.config.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("start embedded checkout for course %s: %w", course.ID.String(), err)
	}

	if err := s.recordPending(ctx, user, course, entity.PaymentKindPaymentIntent, intent.ID); err != nil {
		return nil, err
	}

	return &response.PaymentIntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
	}, nil
}

// prepareCheckout runs the checks shared by both checkout flows.
func (s *paymentService) prepareCheckout(ctx context.Context, userID uuid.UUID, req *request.CheckoutRequest) (*entity.User, *entity.Course, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Checkout validation failed", zap.Any("errors", errs))
		return nil, nil, newValidationError(errs)
	}
	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		return nil, nil, invalidField("courseId", "Must be a valid UUID")
	}

	course, err := s.repo.Course.FindByID(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	if course == nil {
		return nil, nil, ErrCourseNotFound
	}

	enrolled, err := s.repo.Enrollment.ExistsCompleted(ctx, userID, courseID)
	if err != nil {
		return nil, nil, err
	}
	if enrolled {
		return nil, nil, ErrAlreadyEnrolled
	}

	user, err := s.repo.User.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}

	return user, course, nil
}

func (s *paymentService) recordPending(ctx context.Context, user *entity.User, course *entity.Course, kind entity.PaymentKind, ref string) error {
	now := time.Now().UTC()
	enrollment := &entity.Enrollment{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		UserID:        user.ID,
		CourseID:      course.ID,
		PaymentStatus: entity.PaymentStatusPending,
		PaymentKind:   kind,
		ProviderRef:   ref,
		Amount:        course.Price,
		Currency:      s.config.Currency,
	}

	if err := s.repo.Enrollment.CreatePending(ctx, enrollment); err != nil {
		// The provider object exists without a local record; the payer can
		// still complete it but the webhook will report it as unmatched.
		s.log.Error("Failed to record pending enrollment",
			zap.Error(err),
			zap.String("provider_ref", ref),
			zap.String("user_id", user.ID.String()),
			zap.String("course_id", course.ID.String()),
		)
		return err
	}

	s.log.Info("Checkout started",
		zap.String("enrollment_id", enrollment.ID.String()),
		zap.String("payment_kind", string(kind)),
		zap.String("provider_ref", ref),
		zap.String("user_id", user.ID.String()),
		zap.String("course_id", course.ID.String()),
	)
	return nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (SettleAction, error) {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.log.Warn("Rejected webhook", zap.Error(err))
		return "", err
	}

	if event.Outcome == payment.OutcomeIgnored {
		s.log.Debug("Ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		return ActionIgnored, nil
	}

	action, err := s.settler.settle(ctx, entity.PaymentKind(event.Object), event.Reference, event.Outcome)
	if err != nil {
		s.log.Error("Failed to apply webhook event",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.String("provider_ref", event.Reference),
		)
		return action, nil
	}

	s.log.Info("Webhook event processed",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("provider_ref", event.Reference),
		zap.String("user_id", event.UserID),
		zap.String("course_id", event.CourseID),
		zap.String("action", string(action)),
	)
	return action, nil
}

func (s *paymentService) VerifyPayment(ctx context.Context, userID uuid.UUID, sessionID string) (*response.VerifyPaymentResponse, error) {
	if sessionID == "" {
		return nil, invalidField("session_id", "This field is required")
	}

	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("verify session %s: %w", sessionID, err)
	}
	if !session.Paid {
		return nil, ErrPaymentNotCompleted
	}

	enrollment, err := s.repo.Enrollment.FindByProviderRefAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	// Paid at the provider but the webhook has not landed yet.
	if !enrollment.IsCompleted() {
		return nil, ErrPaymentNotCompleted
	}

	resp := &response.VerifyPaymentResponse{
		Enrollment: response.EnrollmentToResponse(enrollment),
	}

	course, err := s.repo.Course.FindByID(ctx, enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	if course != nil {
		c := response.CourseToResponse(course)
		resp.Course = &c
	}

	return resp, nil
}

func (s *paymentService) CheckEnrollment(ctx context.Context, userID uuid.UUID, courseID string) (*response.EnrollmentCheckResponse, error) {
	if courseID == "" {
		return nil, invalidField("course_id", "This field is required")
	}
	id, err := uuid.Parse(courseID)
	if err != nil {
		return nil, invalidField("course_id", "Must be a valid UUID")
	}

	course, err := s.repo.Course.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}

	enrolled, err := s.repo.Enrollment.ExistsCompleted(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	return &response.EnrollmentCheckResponse{Enrolled: enrolled}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
