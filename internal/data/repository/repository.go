package repository

import (
	"errors"

	"lms-backend/pkg/database"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var (
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrAlreadyCompleted is returned when completing an enrollment would give
	// the same (user, course) pair a second completed enrollment.
	ErrAlreadyCompleted = errors.New("course already has a completed enrollment for this user")
)

const pgUniqueViolation = "23505"

type Repository struct {
	User       UserRepository
	Course     CourseRepository
	Enrollment EnrollmentRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User:       NewUserRepository(db, log),
		Course:     NewCourseRepository(db, log),
		Enrollment: NewEnrollmentRepository(db, log),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
