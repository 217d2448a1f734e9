package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lms-backend/internal/data/entity"
	"lms-backend/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type EnrollmentRepository interface {
	// CreatePending stores a pending enrollment and adds the (course, user)
	// membership in one transaction.
	CreatePending(ctx context.Context, enrollment *entity.Enrollment) error
	FindByProviderRef(ctx context.Context, ref string) (*entity.Enrollment, error)
	FindByProviderRefAndUser(ctx context.Context, ref string, userID uuid.UUID) (*entity.Enrollment, error)
	ExistsCompleted(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Enrollment, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	// FindStalePending returns pending enrollments created before the cutoff.
	// Rows never looked at by the reconciler come first, then the ones
	// checked longest ago.
	FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*entity.Enrollment, error)
	MarkChecked(ctx context.Context, ids []uuid.UUID, at time.Time) error

	// State transitions. They return (nil, nil) when no row was eligible.
	MarkCompleted(ctx context.Context, kind entity.PaymentKind, ref string, at time.Time) (*entity.Enrollment, error)
	MarkFailed(ctx context.Context, kind entity.PaymentKind, ref string) (*entity.Enrollment, error)
	MarkRefundRequired(ctx context.Context, kind entity.PaymentKind, ref string) (*entity.Enrollment, error)
}

type enrollmentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewEnrollmentRepository(db database.PgxIface, log *zap.Logger) EnrollmentRepository {
	return &enrollmentRepository{
		db:  db,
		log: log.With(zap.String("repository", "enrollment")),
	}
}

const enrollmentColumns = `id, user_id, course_id, payment_status, payment_kind, provider_ref,
	amount, currency, enrolled_at, last_checked_at, refund_required, created_at, updated_at`

func scanEnrollment(row pgx.Row) (*entity.Enrollment, error) {
	var e entity.Enrollment
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.CourseID,
		&e.PaymentStatus,
		&e.PaymentKind,
		&e.ProviderRef,
		&e.Amount,
		&e.Currency,
		&e.EnrolledAt,
		&e.LastCheckedAt,
		&e.RefundRequired,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *enrollmentRepository) CreatePending(ctx context.Context, e *entity.Enrollment) error {
	insertEnrollment := `
		INSERT INTO enrollments (id, user_id, course_id, payment_status, payment_kind, provider_ref,
		                         amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	addMember := `
		INSERT INTO course_members (course_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (course_id, user_id) DO NOTHING
	`

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertEnrollment,
			e.ID,
			e.UserID,
			e.CourseID,
			e.PaymentStatus,
			e.PaymentKind,
			e.ProviderRef,
			e.Amount,
			e.Currency,
			e.CreatedAt,
			e.UpdatedAt,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, addMember, e.CourseID, e.UserID, e.CreatedAt)
		return err
	})

	if isUniqueViolation(err) {
		return fmt.Errorf("create enrollment for ref %s: %w", e.ProviderRef, ErrDuplicate)
	}
	if err != nil {
		r.log.Error("Failed to create pending enrollment",
			zap.Error(err),
			zap.String("user_id", e.UserID.String()),
			zap.String("course_id", e.CourseID.String()),
			zap.String("provider_ref", e.ProviderRef),
		)
		return fmt.Errorf("create enrollment for ref %s: %w", e.ProviderRef, err)
	}

	return nil
}

func (r *enrollmentRepository) FindByProviderRef(ctx context.Context, ref string) (*entity.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE provider_ref = $1`

	e, err := scanEnrollment(r.db.QueryRow(ctx, query, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find enrollment by provider ref",
			zap.Error(err),
			zap.String("provider_ref", ref),
		)
		return nil, fmt.Errorf("find enrollment by ref %s: %w", ref, err)
	}

	return e, nil
}

func (r *enrollmentRepository) FindByProviderRefAndUser(ctx context.Context, ref string, userID uuid.UUID) (*entity.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE provider_ref = $1 AND user_id = $2`

	e, err := scanEnrollment(r.db.QueryRow(ctx, query, ref, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find enrollment by provider ref and user",
			zap.Error(err),
			zap.String("provider_ref", ref),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("find enrollment by ref %s for user %s: %w", ref, userID.String(), err)
	}

	return e, nil
}

func (r *enrollmentRepository) ExistsCompleted(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE user_id = $1 AND course_id = $2 AND payment_status = $3
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, courseID, entity.PaymentStatusCompleted).Scan(&exists); err != nil {
		r.log.Error("Failed to check completed enrollment",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("course_id", courseID.String()),
		)
		return false, fmt.Errorf("check enrollment of %s in %s: %w", userID.String(), courseID.String(), err)
	}

	return exists, nil
}

func (r *enrollmentRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryMany(ctx, "find enrollments by user", query, userID, limit, offset)
}

func (r *enrollmentRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM enrollments WHERE user_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Database error counting enrollments",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count enrollments of %s: %w", userID.String(), err)
	}

	return count, nil
}

func (r *enrollmentRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*entity.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE payment_status = $1 AND created_at < $2
		ORDER BY last_checked_at NULLS FIRST, created_at
		LIMIT $3
	`

	return r.queryMany(ctx, "find stale pending enrollments", query, entity.PaymentStatusPending, createdBefore, limit)
}

func (r *enrollmentRepository) MarkChecked(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE enrollments
		SET last_checked_at = $2
		WHERE id = ANY($1::uuid[]) AND payment_status = $3
	`

	refs := make([]string, len(ids))
	for i, id := range ids {
		refs[i] = id.String()
	}

	if _, err := r.db.Exec(ctx, query, refs, at, entity.PaymentStatusPending); err != nil {
		r.log.Error("Failed to mark enrollments checked",
			zap.Error(err),
			zap.Int("count", len(ids)),
		)
		return fmt.Errorf("mark %d enrollments checked: %w", len(ids), err)
	}

	return nil
}

// MarkCompleted moves a not-yet-completed enrollment to completed. A row that
// is already completed, or was flagged as a duplicate payment, is left
// untouched, which makes webhook redelivery a no-op. Returns
// ErrAlreadyCompleted when the pair already has another completed enrollment.
func (r *enrollmentRepository) MarkCompleted(ctx context.Context, kind entity.PaymentKind, ref string, at time.Time) (*entity.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET payment_status = $3, enrolled_at = $4, updated_at = $4
		WHERE provider_ref = $1 AND payment_kind = $2 AND payment_status <> $3
		  AND NOT refund_required
		RETURNING ` + enrollmentColumns

	e, err := scanEnrollment(r.db.QueryRow(ctx, query, ref, kind, entity.PaymentStatusCompleted, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("complete enrollment %s: %w", ref, ErrAlreadyCompleted)
	}
	if err != nil {
		r.log.Error("Failed to mark enrollment completed",
			zap.Error(err),
			zap.String("provider_ref", ref),
		)
		return nil, fmt.Errorf("complete enrollment %s: %w", ref, err)
	}

	return e, nil
}

// MarkFailed moves a pending enrollment to failed.
func (r *enrollmentRepository) MarkFailed(ctx context.Context, kind entity.PaymentKind, ref string) (*entity.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET payment_status = $3, updated_at = NOW()
		WHERE provider_ref = $1 AND payment_kind = $2 AND payment_status = $4
		RETURNING ` + enrollmentColumns

	e, err := scanEnrollment(r.db.QueryRow(ctx, query, ref, kind, entity.PaymentStatusFailed, entity.PaymentStatusPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to mark enrollment failed",
			zap.Error(err),
			zap.String("provider_ref", ref),
		)
		return nil, fmt.Errorf("fail enrollment %s: %w", ref, err)
	}

	return e, nil
}

// MarkRefundRequired parks a duplicate payment as failed and flags it for a
// refund. Only the first call for a row returns it.
func (r *enrollmentRepository) MarkRefundRequired(ctx context.Context, kind entity.PaymentKind, ref string) (*entity.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET payment_status = $3, refund_required = TRUE, updated_at = NOW()
		WHERE provider_ref = $1 AND payment_kind = $2 AND payment_status <> $4
		  AND NOT refund_required
		RETURNING ` + enrollmentColumns

	e, err := scanEnrollment(r.db.QueryRow(ctx, query, ref, kind, entity.PaymentStatusFailed, entity.PaymentStatusCompleted))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to flag enrollment for refund",
			zap.Error(err),
			zap.String("provider_ref", ref),
		)
		return nil, fmt.Errorf("flag enrollment %s for refund: %w", ref, err)
	}

	return e, nil
}

func (r *enrollmentRepository) queryMany(ctx context.Context, op, query string, args ...any) ([]*entity.Enrollment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var enrollments []*entity.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			r.log.Error("Failed to scan enrollment row", zap.Error(err))
			return nil, fmt.Errorf("scan enrollment row: %w", err)
		}
		enrollments = append(enrollments, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", op, err)
	}

	return enrollments, nil
}
