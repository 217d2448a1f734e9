package usecase

import (
	"context"

	"lms-backend/internal/data/repository"
	"lms-backend/internal/dto/request"
	"lms-backend/internal/dto/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*response.ProfileResponse, error)
	GetEnrollments(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.EnrollmentResponse], error)

	// Admin
	GetAllUsers(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.UserResponse], error)
}

type userService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewUserService(repo *repository.Repository, log *zap.Logger) UserService {
	return &userService{
		repo: repo,
		log:  log.With(zap.String("service", "user")),
	}
}

func (us *userService) GetProfile(ctx context.Context, userID uuid.UUID) (*response.ProfileResponse, error) {
	user, err := us.repo.User.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	courseIDs, err := us.repo.Course.FindMemberCourseIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	enrolled := make([]string, len(courseIDs))
	for i, id := range courseIDs {
		enrolled[i] = id.String()
	}

	return &response.ProfileResponse{
		UserResponse:    response.UserToResponse(user),
		EnrolledCourses: enrolled,
	}, nil
}

func (us *userService) GetEnrollments(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.EnrollmentResponse], error) {
	req.Normalize()

	enrollments, err := us.repo.Enrollment.FindByUserID(ctx, userID, req.Limit(), req.Offset())
	if err != nil {
		return nil, err
	}

	total, err := us.repo.Enrollment.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]response.EnrollmentResponse, len(enrollments))
	for i, e := range enrollments {
		items[i] = response.EnrollmentToResponse(e)
	}

	return response.NewPaginatedResponse(items, req.Page, req.PerPage, total), nil
}

func (us *userService) GetAllUsers(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.UserResponse], error) {
	req.Normalize()

	users, err := us.repo.User.FindAll(ctx, req.Limit(), req.Offset())
	if err != nil {
		return nil, err
	}

	total, err := us.repo.User.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]response.UserResponse, len(users))
	for i, user := range users {
		items[i] = response.UserToResponse(user)
	}

	us.log.Debug("Users retrieved",
		zap.Int("count", len(users)),
		zap.Int64("total", total),
		zap.Int("page", req.Page),
		zap.Int("per_page", req.PerPage),
	)

	return response.NewPaginatedResponse(items, req.Page, req.PerPage, total), nil
}
