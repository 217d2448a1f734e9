package response

import (
	"time"

	"lms-backend/internal/data/entity"
)

type CourseResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  *string   `json:"description,omitempty"`
	Price        float64   `json:"price"`
	InstructorID string    `json:"instructor_id"`
	StudentCount int       `json:"student_count"`
	CreatedAt    time.Time `json:"created_at"`
}

func CourseToResponse(course *entity.Course) CourseResponse {
	return CourseResponse{
		ID:           course.ID.String(),
		Title:        course.Title,
		Description:  course.Description,
		Price:        course.Price,
		InstructorID: course.InstructorID.String(),
		StudentCount: course.StudentCount,
		CreatedAt:    course.CreatedAt,
	}
}
