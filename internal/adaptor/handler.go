package adaptor

import (
	"errors"
	"net/http"

	"lms-backend/internal/dto/request"
	"lms-backend/internal/usecase"
	"lms-backend/pkg/payment"
	"lms-backend/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Auth    *AuthHandler
	User    *UserHandler
	Course  *CourseHandler
	Payment *PaymentHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(service.Auth, log),
		User:    NewUserHandler(service.User, log),
		Course:  NewCourseHandler(service.Course, log),
		Payment: NewPaymentHandler(service.Payment, log),
	}
}

// handleServiceError maps service errors onto the JSON envelope.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var verr *usecase.ValidationError
	var perr *payment.ProviderError

	switch {
	case errors.As(err, &verr):
		log.Warn(operation+" validation failed", zap.Error(err))
		utils.ResponseBadRequest(w, "Validation failed", verr.Fields)

	case errors.Is(err, usecase.ErrNotFound):
		log.Warn(operation+" failed - not found", zap.Error(err))
		utils.ResponseNotFound(w, usecase.PublicMessage(err))

	case errors.Is(err, usecase.ErrAlreadyEnrolled),
		errors.Is(err, usecase.ErrPaymentNotCompleted),
		errors.Is(err, usecase.ErrEmailTaken):
		log.Warn(operation+" rejected", zap.Error(err))
		utils.ResponseBadRequest(w, usecase.PublicMessage(err), nil)

	case errors.Is(err, usecase.ErrInvalidCredentials):
		log.Warn(operation+" failed - invalid credentials")
		utils.ResponseUnauthorized(w, usecase.PublicMessage(err))

	case errors.Is(err, usecase.ErrAccountDisabled):
		log.Warn(operation+" failed - account deactivated")
		utils.ResponseForbidden(w, usecase.PublicMessage(err))

	case errors.As(err, &perr):
		log.Error(operation+" failed - payment provider", zap.Error(err))
		utils.ResponseUpstreamError(w, "Failed to "+operation, perr.Msg)

	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

func paginationFromQuery(r *http.Request) *request.PaginatedRequest {
	query := r.URL.Query()
	return &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}
}
