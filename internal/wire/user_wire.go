package wire

import (
	"net/http"

	"lms-backend/internal/adaptor"
	"lms-backend/internal/data/entity"
	"lms-backend/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wireUser configures user routes with role-based access control
func wireUser(
	r chi.Router,
	userHandler *adaptor.UserHandler,
	auth func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	// ==================== PROTECTED USER ROUTES ====================
	r.With(auth).Route("/api/users", func(r chi.Router) {
		r.Get("/profile", userHandler.GetProfile)
		r.Get("/enrollments", userHandler.GetEnrollments) // ?page=1&per_page=10
	})

	// ==================== ADMIN ROUTES ====================
	r.With(
		auth,
		middleware.RequireRole(log, entity.RoleAdmin),
	).Get("/api/admin/users", userHandler.GetAllUsers)
}
