// internal/wire/wire.go
package wire

import (
	"net/http"

	"lms-backend/internal/adaptor"
	"lms-backend/internal/data/repository"
	"lms-backend/internal/usecase"
	"lms-backend/pkg/middleware"
	"lms-backend/pkg/payment"
	"lms-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the wired router and services.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and routes from the shared dependencies.
func Wiring(repo *repository.Repository, gateway payment.Gateway, config *utils.Config, logger *zap.Logger) *App {
	tokens := utils.NewTokenIssuer(config.JWT, config.App.Name)

	service := usecase.NewService(repo, gateway, tokens, config, logger)
	handler := adaptor.NewHandler(service, logger)

	router := setupRouter(handler, repo, tokens, config, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	repo *repository.Repository,
	tokens *utils.TokenIssuer,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.SecureHeaders(config.App.Debug))
	r.Use(middleware.CORS(config.HTTP))

	// Stripe calls this directly; it is signed, not rate limited.
	wireWebhook(r, handler.Payment)

	auth := middleware.Protect(tokens, repo.User, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(config.HTTP))

		wireAuth(r, handler.Auth)
		wireUser(r, handler.User, auth, logger)
		wireCourse(r, handler.Course, auth, logger)
		wirePayment(r, handler.Payment, auth)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
