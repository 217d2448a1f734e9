package usecase

import (
	"context"
	"strings"
	"time"

	"lms-backend/internal/data/entity"
	"lms-backend/internal/data/repository"
	"lms-backend/internal/dto/request"
	"lms-backend/internal/dto/response"
	"lms-backend/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CourseService interface {
	// Public endpoints
	GetAllCourses(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.CourseResponse], error)
	GetCourseByID(ctx context.Context, id string) (*response.CourseResponse, error)

	// Instructor & admin
	CreateCourse(ctx context.Context, instructorID uuid.UUID, req *request.CourseRequest) (*response.CourseResponse, error)
}

type courseService struct {
	courseRepo repository.CourseRepository
	log        *zap.Logger
}

func NewCourseService(courseRepo repository.CourseRepository, log *zap.Logger) CourseService {
	return &courseService{
		courseRepo: courseRepo,
		log:        log.With(zap.String("service", "course")),
	}
}

func (cs *courseService) GetAllCourses(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.CourseResponse], error) {
	req.Normalize()

	courses, err := cs.courseRepo.FindAll(ctx, req.Limit(), req.Offset())
	if err != nil {
		return nil, err
	}

	total, err := cs.courseRepo.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]response.CourseResponse, len(courses))
	for i, course := range courses {
		items[i] = response.CourseToResponse(course)
	}

	return response.NewPaginatedResponse(items, req.Page, req.PerPage, total), nil
}

func (cs *courseService) GetCourseByID(ctx context.Context, id string) (*response.CourseResponse, error) {
	courseID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalidField("id", "Must be a valid UUID")
	}

	course, err := cs.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}

	resp := response.CourseToResponse(course)
	return &resp, nil
}

func (cs *courseService) CreateCourse(ctx context.Context, instructorID uuid.UUID, req *request.CourseRequest) (*response.CourseResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		cs.log.Warn("Course validation failed", zap.Any("errors", errs))
		return nil, newValidationError(errs)
	}

	now := time.Now().UTC()
	course := &entity.Course{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Price:        utils.RoundMoney(req.Price),
		InstructorID: instructorID,
	}

	if err := cs.courseRepo.Create(ctx, course); err != nil {
		return nil, err
	}

	cs.log.Info("Course created",
		zap.String("course_id", course.ID.String()),
		zap.String("instructor_id", instructorID.String()),
		zap.Float64("price", course.Price),
	)

	resp := response.CourseToResponse(course)
	return &resp, nil
}
