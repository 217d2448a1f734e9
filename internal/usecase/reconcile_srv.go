package usecase

import (
	"context"
	"time"

	"lms-backend/internal/data/entity"
	"lms-backend/internal/data/repository"
	"lms-backend/pkg/payment"
	"lms-backend/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconcileReport summarises one sweep over stale pending enrollments.
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// ReconcileService re-reads pending enrollments from the provider and settles
// the ones whose webhook never arrived or was dropped.
type ReconcileService interface {
	ReconcilePending(ctx context.Context) (*ReconcileReport, error)
}

type reconcileService struct {
	enrollments repository.EnrollmentRepository
	gateway     payment.Gateway
	settler     *settler
	minAge      time.Duration
	batchSize   int
	log         *zap.Logger
}

func NewReconcileService(
	enrollments repository.EnrollmentRepository,
	gateway payment.Gateway,
	config utils.ReconcileConfig,
	log *zap.Logger,
) ReconcileService {
	log = log.With(zap.String("service", "reconcile"))
	return &reconcileService{
		enrollments: enrollments,
		gateway:     gateway,
		settler:     newSettler(enrollments, log),
		minAge:      config.MinAge,
		batchSize:   config.BatchSize,
		log:         log,
	}
}

func (s *reconcileService) ReconcilePending(ctx context.Context) (*ReconcileReport, error) {
	cutoff := s.settler.now().Add(-s.minAge)
	pending, err := s.enrollments.FindStalePending(ctx, cutoff, s.batchSize)
	if err != nil {
		s.log.Error("Failed to load stale pending enrollments", zap.Error(err))
		return nil, err
	}

	report := &ReconcileReport{}
	// Rows left pending move behind the ones not looked at yet.
	var unsettled []uuid.UUID
	for _, enrollment := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		outcome, err := s.providerOutcome(ctx, enrollment)
		if err != nil {
			report.Errors++
			unsettled = append(unsettled, enrollment.ID)
			continue
		}

		action, err := s.settler.settle(ctx, enrollment.PaymentKind, enrollment.ProviderRef, outcome)
		if err != nil {
			s.log.Error("Failed to settle enrollment",
				zap.Error(err),
				zap.String("enrollment_id", enrollment.ID.String()),
			)
			report.Errors++
			unsettled = append(unsettled, enrollment.ID)
			continue
		}

		switch action {
		case ActionCompleted:
			report.Completed++
		case ActionFailed, ActionRefundRequired:
			report.Failed++
		default:
			report.Skipped++
			unsettled = append(unsettled, enrollment.ID)
		}
	}

	if err := s.enrollments.MarkChecked(ctx, unsettled, s.settler.now().UTC()); err != nil {
		return report, err
	}

	if report.Checked > 0 {
		s.log.Info("Reconciliation finished",
			zap.Int("checked", report.Checked),
			zap.Int("completed", report.Completed),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
			zap.Int("errors", report.Errors),
		)
	}

	return report, nil
}

// providerOutcome maps the provider's current view of the enrollment's payment
// onto an Outcome. Payments still in flight are ignored.
func (s *reconcileService) providerOutcome(ctx context.Context, enrollment *entity.Enrollment) (payment.Outcome, error) {
	switch enrollment.PaymentKind {
	case entity.PaymentKindCheckoutSession:
		session, err := s.gateway.GetCheckoutSession(ctx, enrollment.ProviderRef)
		if err != nil {
			s.log.Warn("Failed to fetch checkout session",
				zap.Error(err),
				zap.String("provider_ref", enrollment.ProviderRef),
			)
			return "", err
		}
		switch {
		case session.Paid:
			return payment.OutcomeSucceeded, nil
		case session.Expired:
			return payment.OutcomeFailed, nil
		}

	case entity.PaymentKindPaymentIntent:
		intent, err := s.gateway.GetPaymentIntent(ctx, enrollment.ProviderRef)
		if err != nil {
			s.log.Warn("Failed to fetch payment intent",
				zap.Error(err),
				zap.String("provider_ref", enrollment.ProviderRef),
			)
			return "", err
		}
		switch {
		case intent.Succeeded:
			return payment.OutcomeSucceeded, nil
		case intent.Canceled:
			return payment.OutcomeFailed, nil
		}
	}

	return payment.OutcomeIgnored, nil
}
