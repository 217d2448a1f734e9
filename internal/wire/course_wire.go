package wire

import (
	"net/http"

	"lms-backend/internal/adaptor"
	"lms-backend/internal/data/entity"
	"lms-backend/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireCourse(
	r chi.Router,
	courseHandler *adaptor.CourseHandler,
	auth func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	r.Route("/api/courses", func(r chi.Router) {
		// Public catalog
		r.Get("/", courseHandler.GetAllCourses)
		r.Get("/{id}", courseHandler.GetCourseByID)

		// Instructor & admin
		r.With(
			auth,
			middleware.RequireRole(log, entity.RoleInstructor, entity.RoleAdmin),
		).Post("/", courseHandler.CreateCourse)
	})
}
