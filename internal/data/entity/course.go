package entity

import "github.com/google/uuid"

type Course struct {
	Base
	Title        string    `db:"title"`
	Description  *string   `db:"description"`
	Price        float64   `db:"price"`
	InstructorID uuid.UUID `db:"instructor_id"`
	StudentCount int       `db:"student_count"` // computed from course_members
}
