package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lms-backend/internal/data/entity"
	"lms-backend/internal/data/repository"
	"lms-backend/pkg/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memStore backs the in-memory repositories. Enrollment transitions follow
// the same rules as the SQL statements, including the one-completed-per-pair
// index.
type memStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*entity.User
	courses     map[uuid.UUID]*entity.Course
	members     map[uuid.UUID][]uuid.UUID // user -> courses
	enrollments map[string]*entity.Enrollment
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[uuid.UUID]*entity.User{},
		courses:     map[uuid.UUID]*entity.Course{},
		members:     map[uuid.UUID][]uuid.UUID{},
		enrollments: map[string]*entity.Enrollment{},
	}
}

func (m *memStore) repository() *repository.Repository {
	return &repository.Repository{
		User:       memUsers{m},
		Course:     memCourses{m},
		Enrollment: memEnrollments{m},
	}
}

func (m *memStore) addUser(email string) *entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &entity.User{
		Base:     entity.Base{ID: uuid.New(), CreatedAt: time.Now()},
		Username: strings.Split(email, "@")[0],
		Email:    email,
		Role:     entity.RoleStudent,
		IsActive: true,
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addCourse(title string, price float64) *entity.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &entity.Course{
		Base:  entity.Base{ID: uuid.New(), CreatedAt: time.Now()},
		Title: title,
		Price: price,
	}
	m.courses[c.ID] = c
	return c
}

func (m *memStore) addEnrollment(userID, courseID uuid.UUID, kind entity.PaymentKind, ref string, status entity.PaymentStatus) *entity.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &entity.Enrollment{
		BaseNoDelete:  entity.BaseNoDelete{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)},
		UserID:        userID,
		CourseID:      courseID,
		PaymentStatus: status,
		PaymentKind:   kind,
		ProviderRef:   ref,
	}
	m.enrollments[ref] = e
	return e
}

func (m *memStore) enrollment(ref string) *entity.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[ref]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

func (m *memStore) enrollmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.enrollments)
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, user *entity.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	cp := *user
	r.m.users[user.ID] = &cp
	return nil
}

func (r memUsers) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memUsers) FindAll(_ context.Context, limit, offset int) ([]*entity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []*entity.User
	for _, u := range r.m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	return page(all, limit, offset), nil
}

func (r memUsers) CountAll(_ context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.m.users)), nil
}

type memCourses struct{ m *memStore }

func (r memCourses) Create(_ context.Context, course *entity.Course) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *course
	r.m.courses[course.ID] = &cp
	return nil
}

func (r memCourses) FindByID(_ context.Context, id uuid.UUID) (*entity.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.courses[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r memCourses) FindAll(_ context.Context, limit, offset int) ([]*entity.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []*entity.Course
	for _, c := range r.m.courses {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Title < all[j].Title })
	return page(all, limit, offset), nil
}

func (r memCourses) CountAll(_ context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.m.courses)), nil
}

func (r memCourses) FindMemberCourseIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return append([]uuid.UUID(nil), r.m.members[userID]...), nil
}

type memEnrollments struct{ m *memStore }

func (r memEnrollments) CreatePending(_ context.Context, e *entity.Enrollment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.enrollments[e.ProviderRef]; ok {
		return repository.ErrDuplicate
	}
	cp := *e
	r.m.enrollments[e.ProviderRef] = &cp

	for _, id := range r.m.members[e.UserID] {
		if id == e.CourseID {
			return nil
		}
	}
	r.m.members[e.UserID] = append(r.m.members[e.UserID], e.CourseID)
	return nil
}

func (r memEnrollments) FindByProviderRef(_ context.Context, ref string) (*entity.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.enrollments[ref]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r memEnrollments) FindByProviderRefAndUser(_ context.Context, ref string, userID uuid.UUID) (*entity.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.enrollments[ref]
	if !ok || e.UserID != userID {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r memEnrollments) ExistsCompleted(_ context.Context, userID, courseID uuid.UUID) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, e := range r.m.enrollments {
		if e.UserID == userID && e.CourseID == courseID && e.IsCompleted() {
			return true, nil
		}
	}
	return false, nil
}

func (r memEnrollments) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []*entity.Enrollment
	for _, e := range r.m.enrollments {
		if e.UserID == userID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ProviderRef < all[j].ProviderRef })
	return page(all, limit, offset), nil
}

func (r memEnrollments) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, e := range r.m.enrollments {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r memEnrollments) FindStalePending(_ context.Context, createdBefore time.Time, limit int) ([]*entity.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Enrollment
	for _, e := range r.m.enrollments {
		if e.PaymentStatus == entity.PaymentStatusPending && e.CreatedAt.Before(createdBefore) {
			cp := *e
			out = append(out, &cp)
		}
	}
	// last_checked_at NULLS FIRST, created_at
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastCheckedAt, out[j].LastCheckedAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, limit, 0), nil
}

func (r memEnrollments) MarkChecked(_ context.Context, ids []uuid.UUID, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, id := range ids {
		for _, e := range r.m.enrollments {
			if e.ID == id && e.PaymentStatus == entity.PaymentStatusPending {
				checked := at
				e.LastCheckedAt = &checked
			}
		}
	}
	return nil
}

func (r memEnrollments) MarkCompleted(_ context.Context, kind entity.PaymentKind, ref string, at time.Time) (*entity.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.enrollments[ref]
	if !ok || e.PaymentKind != kind || e.IsCompleted() || e.RefundRequired {
		return nil, nil
	}
	for _, other := range r.m.enrollments {
		if other != e && other.UserID == e.UserID && other.CourseID == e.CourseID && other.IsCompleted() {
			return nil, repository.ErrAlreadyCompleted
		}
	}
	e.PaymentStatus = entity.PaymentStatusCompleted
	e.EnrolledAt = &at
	cp := *e
	return &cp, nil
}

func (r memEnrollments) MarkFailed(_ context.Context, kind entity.PaymentKind, ref string) (*entity.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.enrollments[ref]
	if !ok || e.PaymentKind != kind || e.PaymentStatus != entity.PaymentStatusPending {
		return nil, nil
	}
	e.PaymentStatus = entity.PaymentStatusFailed
	cp := *e
	return &cp, nil
}

func (r memEnrollments) MarkRefundRequired(_ context.Context, kind entity.PaymentKind, ref string) (*entity.Enrollment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.enrollments[ref]
	if !ok || e.PaymentKind != kind || e.IsCompleted() || e.RefundRequired {
		return nil, nil
	}
	e.PaymentStatus = entity.PaymentStatusFailed
	e.RefundRequired = true
	cp := *e
	return &cp, nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// mockGateway is a testify mock of payment.Gateway.
type mockGateway struct {
	mock.Mock
}

var _ payment.Gateway = (*mockGateway)(nil)

func (g *mockGateway) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	args := g.Called(ctx, params)
	s, _ := args.Get(0).(*payment.CheckoutSession)
	return s, args.Error(1)
}

func (g *mockGateway) GetCheckoutSession(ctx context.Context, id string) (*payment.CheckoutSession, error) {
	args := g.Called(ctx, id)
	s, _ := args.Get(0).(*payment.CheckoutSession)
	return s, args.Error(1)
}

func (g *mockGateway) CreatePaymentIntent(ctx context.Context, params payment.IntentParams) (*payment.PaymentIntent, error) {
	args := g.Called(ctx, params)
	pi, _ := args.Get(0).(*payment.PaymentIntent)
	return pi, args.Error(1)
}

func (g *mockGateway) GetPaymentIntent(ctx context.Context, id string) (*payment.PaymentIntent, error) {
	args := g.Called(ctx, id)
	pi, _ := args.Get(0).(*payment.PaymentIntent)
	return pi, args.Error(1)
}

func (g *mockGateway) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	args := g.Called(payload, signature)
	evt, _ := args.Get(0).(*payment.Event)
	return evt, args.Error(1)
}
