package request

// CheckoutRequest starts a payment for one course, from either the web or the
// mobile client.
type CheckoutRequest struct {
	CourseID string `json:"courseId" validate:"required,uuid"`
}
