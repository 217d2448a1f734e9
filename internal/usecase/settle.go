package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lms-backend/internal/data/entity"
	"lms-backend/internal/data/repository"
	"lms-backend/pkg/payment"

	"go.uber.org/zap"
)

// SettleAction describes what a payment outcome did to the stored enrollment.
type SettleAction string

const (
	ActionCompleted      SettleAction = "completed"
	ActionFailed         SettleAction = "failed"
	ActionUnchanged      SettleAction = "unchanged"
	ActionNotFound       SettleAction = "not_found"
	ActionIgnored        SettleAction = "ignored"
	ActionRefundRequired SettleAction = "refund_required"
)

// settler applies provider outcomes to enrollments. Webhooks and the
// background reconciler share it so both paths make the same transitions.
type settler struct {
	enrollments repository.EnrollmentRepository
	log         *zap.Logger
	now         func() time.Time
}

func newSettler(enrollments repository.EnrollmentRepository, log *zap.Logger) *settler {
	return &settler{enrollments: enrollments, log: log, now: time.Now}
}

func (s *settler) settle(ctx context.Context, kind entity.PaymentKind, ref string, outcome payment.Outcome) (SettleAction, error) {
	switch outcome {
	case payment.OutcomeSucceeded:
		return s.complete(ctx, kind, ref)
	case payment.OutcomeFailed:
		return s.fail(ctx, kind, ref)
	default:
		return ActionIgnored, nil
	}
}

func (s *settler) complete(ctx context.Context, kind entity.PaymentKind, ref string) (SettleAction, error) {
	enrollment, err := s.enrollments.MarkCompleted(ctx, kind, ref, s.now().UTC())
	if errors.Is(err, repository.ErrAlreadyCompleted) {
		// The pair was paid twice; keep the first enrollment and park this one.
		parked, ferr := s.enrollments.MarkRefundRequired(ctx, kind, ref)
		if ferr != nil {
			return ActionRefundRequired, fmt.Errorf("park duplicate payment %s: %w", ref, ferr)
		}
		if parked == nil {
			return ActionUnchanged, nil
		}
		s.log.Error("Duplicate payment for an already completed enrollment, refund required",
			zap.String("provider_ref", ref),
			zap.String("payment_kind", string(kind)),
		)
		return ActionRefundRequired, nil
	}
	if err != nil {
		return "", fmt.Errorf("complete enrollment %s: %w", ref, err)
	}
	if enrollment != nil {
		s.log.Info("Enrollment completed",
			zap.String("enrollment_id", enrollment.ID.String()),
			zap.String("user_id", enrollment.UserID.String()),
			zap.String("course_id", enrollment.CourseID.String()),
			zap.String("provider_ref", ref),
		)
		return ActionCompleted, nil
	}

	return s.unchanged(ctx, ref)
}

func (s *settler) fail(ctx context.Context, kind entity.PaymentKind, ref string) (SettleAction, error) {
	enrollment, err := s.enrollments.MarkFailed(ctx, kind, ref)
	if err != nil {
		return "", fmt.Errorf("fail enrollment %s: %w", ref, err)
	}
	if enrollment != nil {
		s.log.Info("Enrollment payment failed",
			zap.String("enrollment_id", enrollment.ID.String()),
			zap.String("provider_ref", ref),
		)
		return ActionFailed, nil
	}

	return s.unchanged(ctx, ref)
}

// unchanged tells a redelivered event apart from one with no enrollment.
func (s *settler) unchanged(ctx context.Context, ref string) (SettleAction, error) {
	existing, err := s.enrollments.FindByProviderRef(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("look up enrollment %s: %w", ref, err)
	}
	if existing == nil {
		s.log.Warn("No enrollment matches provider reference", zap.String("provider_ref", ref))
		return ActionNotFound, nil
	}

	s.log.Debug("Enrollment already settled",
		zap.String("provider_ref", ref),
		zap.String("payment_status", string(existing.PaymentStatus)),
	)
	return ActionUnchanged, nil
}
