package adaptor

import (
	"encoding/json"
	"net/http"

	"lms-backend/internal/dto/request"
	"lms-backend/internal/usecase"
	"lms-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CourseHandler struct {
	service usecase.CourseService
	log     *zap.Logger
}

func NewCourseHandler(service usecase.CourseService, log *zap.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		log:     log.With(zap.String("handler", "course")),
	}
}

// GetAllCourses handles GET /api/courses
func (h *CourseHandler) GetAllCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.GetAllCourses(r.Context(), paginationFromQuery(r))
	if err != nil {
		handleServiceError(w, h.log, err, "get courses")
		return
	}

	utils.ResponseSuccess(w, "Courses retrieved successfully", courses)
}

// GetCourseByID handles GET /api/courses/{id}
func (h *CourseHandler) GetCourseByID(w http.ResponseWriter, r *http.Request) {
	course, err := h.service.GetCourseByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get course")
		return
	}

	utils.ResponseSuccess(w, "Course retrieved successfully", course)
}

// CreateCourse handles POST /api/courses (instructor/admin)
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	course, err := h.service.CreateCourse(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create course")
		return
	}

	utils.ResponseCreated(w, "Course created successfully", course)
}
