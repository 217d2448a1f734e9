package repository

import (
	"context"
	"errors"
	"fmt"

	"lms-backend/internal/data/entity"
	"lms-backend/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type CourseRepository interface {
	Create(ctx context.Context, course *entity.Course) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Course, error)
	FindAll(ctx context.Context, limit, offset int) ([]*entity.Course, error)
	CountAll(ctx context.Context) (int64, error)

	// Membership set
	FindMemberCourseIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type courseRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewCourseRepository(db database.PgxIface, log *zap.Logger) CourseRepository {
	return &courseRepository{
		db:  db,
		log: log.With(zap.String("repository", "course")),
	}
}

const courseSelect = `
	SELECT c.id, c.title, c.description, c.price, c.instructor_id,
	       (SELECT COUNT(*) FROM course_members m WHERE m.course_id = c.id) AS student_count,
	       c.created_at, c.updated_at, c.deleted_at
	FROM courses c
`

func scanCourse(row pgx.Row) (*entity.Course, error) {
	var course entity.Course
	err := row.Scan(
		&course.ID,
		&course.Title,
		&course.Description,
		&course.Price,
		&course.InstructorID,
		&course.StudentCount,
		&course.CreatedAt,
		&course.UpdatedAt,
		&course.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *entity.Course) error {
	query := `
		INSERT INTO courses (id, title, description, price, instructor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		course.ID,
		course.Title,
		course.Description,
		course.Price,
		course.InstructorID,
		course.CreatedAt,
		course.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create course",
			zap.Error(err),
			zap.String("title", course.Title),
		)
		return fmt.Errorf("create course %s: %w", course.Title, err)
	}

	return nil
}

func (r *courseRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Course, error) {
	query := courseSelect + ` WHERE c.id = $1 AND c.deleted_at IS NULL`

	course, err := scanCourse(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find course by ID",
			zap.Error(err),
			zap.String("course_id", id.String()),
		)
		return nil, fmt.Errorf("find course by ID %s: %w", id.String(), err)
	}

	return course, nil
}

func (r *courseRepository) FindAll(ctx context.Context, limit, offset int) ([]*entity.Course, error) {
	query := courseSelect + `
		WHERE c.deleted_at IS NULL
		ORDER BY c.created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to list courses",
			zap.Error(err),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find all courses limit %d offset %d: %w", limit, offset, err)
	}
	defer rows.Close()

	var courses []*entity.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			r.log.Error("Failed to scan course row", zap.Error(err))
			return nil, fmt.Errorf("scan course row: %w", err)
		}
		courses = append(courses, course)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course rows: %w", err)
	}

	return courses, nil
}

func (r *courseRepository) CountAll(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM courses WHERE deleted_at IS NULL`

	var count int64
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		r.log.Error("Database error counting courses", zap.Error(err))
		return 0, fmt.Errorf("count all courses: %w", err)
	}

	return count, nil
}

func (r *courseRepository) FindMemberCourseIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT course_id FROM course_members WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list member courses",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("find member courses for %s: %w", userID.String(), err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect member courses for %s: %w", userID.String(), err)
	}
	return ids, nil
}
