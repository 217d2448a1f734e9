package request

type CourseRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price       float64 `json:"price" validate:"required,gte=0.01,lte=99999999.99"`
}
