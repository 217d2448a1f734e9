package usecase

import (
	"context"
	"testing"

	"lms-backend/internal/data/entity"
	"lms-backend/internal/dto/request"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUserService_GetProfile(t *testing.T) {
	store := newMemStore()
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	repo := store.repository()
	require.NoError(t, repo.Enrollment.CreatePending(context.Background(), &entity.Enrollment{
		BaseNoDelete:  entity.BaseNoDelete{ID: uuid.New()},
		UserID:        user.ID,
		CourseID:      course.ID,
		PaymentStatus: entity.PaymentStatusPending,
		PaymentKind:   entity.PaymentKindCheckoutSession,
		ProviderRef:   "cs_1",
	}))

	svc := NewUserService(repo, zap.NewNop())

	profile, err := svc.GetProfile(context.Background(), user.ID)

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, []string{course.ID.String()}, profile.EnrolledCourses)

	_, err = svc.GetProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_GetEnrollments_Paginates(t *testing.T) {
	store := newMemStore()
	user := store.addUser("alice@example.com")
	course := store.addCourse("Go Basics", 100)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_1", entity.PaymentStatusFailed)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindCheckoutSession, "cs_2", entity.PaymentStatusCompleted)
	store.addEnrollment(user.ID, course.ID, entity.PaymentKindPaymentIntent, "pi_3", entity.PaymentStatusPending)

	svc := NewUserService(store.repository(), zap.NewNop())

	resp, err := svc.GetEnrollments(context.Background(), user.ID, &request.PaginatedRequest{Page: 2, PerPage: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "pi_3", resp.Data[0].ProviderRef)
}

func TestUserService_GetAllUsers_DefaultsPaging(t *testing.T) {
	store := newMemStore()
	store.addUser("a@example.com")
	store.addUser("b@example.com")
	svc := NewUserService(store.repository(), zap.NewNop())

	resp, err := svc.GetAllUsers(context.Background(), &request.PaginatedRequest{})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.Equal(t, 10, resp.Pagination.PerPage)
	assert.Len(t, resp.Data, 2)
}
