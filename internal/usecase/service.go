package usecase

import (
	"lms-backend/internal/data/repository"
	"lms-backend/pkg/payment"
	"lms-backend/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Auth      AuthService
	User      UserService
	Course    CourseService
	Payment   PaymentService
	Reconcile ReconcileService
}

func NewService(
	repo *repository.Repository,
	gateway payment.Gateway,
	tokens *utils.TokenIssuer,
	config *utils.Config,
	log *zap.Logger,
) *Service {
	return &Service{
		Auth:      NewAuthService(repo.User, tokens, log),
		User:      NewUserService(repo, log),
		Course:    NewCourseService(repo.Course, log),
		Payment:   NewPaymentService(repo, gateway, config.Stripe, log),
		Reconcile: NewReconcileService(repo.Enrollment, gateway, config.Reconcile, log),
	}
}
