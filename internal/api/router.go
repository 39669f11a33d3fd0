package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jobhouse/server/internal/api/handlers"
	"github.com/jobhouse/server/internal/api/middleware"
	"github.com/jobhouse/server/internal/audit"
	"github.com/jobhouse/server/internal/auth"
	"github.com/jobhouse/server/internal/config"
	"github.com/jobhouse/server/internal/domain/applications"
	"github.com/jobhouse/server/internal/domain/events"
	"github.com/jobhouse/server/internal/domain/jobapplications"
	"github.com/jobhouse/server/internal/domain/users"
	"github.com/jobhouse/server/internal/metrics"
	"github.com/jobhouse/server/internal/notify"
	"github.com/jobhouse/server/internal/storage"
)

// Services are the domain services behind the HTTP surface.
type Services struct {
	Events          *events.Service
	Applications    *applications.Service
	JobApplications *jobapplications.Service
	Users           *users.Service
	JWT             *auth.JWTManager
}

// NewServices wires the domain services onto one repository.
func NewServices(cfg config.Config, repo storage.Repository, publisher notify.Publisher, mailer users.Mailer, logger zerolog.Logger) Services {
	jwt := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer)
	eventService := events.NewService(repo.Events(), publisher, logger)
	return Services{
		Events:          eventService,
		Applications:    applications.NewService(repo.Applications(), eventService, publisher, logger),
		JobApplications: jobapplications.NewService(repo.JobApplications(), publisher, logger),
		Users:           users.NewService(repo.Users(), jwt, mailer, audit.NewLogger(logger), cfg.Server.FrontendURL, logger),
		JWT:             jwt,
	}
}

// Router is the assembled HTTP handler plus the state it owns.
type Router struct {
	Handler     http.Handler
	RateLimiter *middleware.RateLimiter
}

// Close stops background work started by the router.
func (r *Router) Close() {
	r.RateLimiter.Stop()
}

// NewRouter mounts every route. health may be nil in tests.
func NewRouter(cfg config.Config, logger zerolog.Logger, svc Services, health *handlers.HealthChecker, ready handlers.Pinger, build BuildInfo) *Router {
	limiter := middleware.NewRateLimiter(cfg.RateLimit)

	eventsHandler := handlers.NewEventsHandler(svc.Events, events.PaginationConfig{
		DefaultPerPage: cfg.Pagination.DefaultPerPage,
		MaxPerPage:     cfg.Pagination.MaxPerPage,
	})
	appsHandler := handlers.NewApplicationsHandler(svc.Applications)
	jobsHandler := handlers.NewJobApplicationsHandler(svc.JobApplications)
	usersHandler := handlers.NewUsersHandler(svc.Users)

	authn := middleware.Authenticate(svc.JWT, svc.Users)

	public := func(h http.HandlerFunc) http.Handler {
		return chain(h, limiter.Tier(middleware.TierPublic), middleware.RequestSize(middleware.PublicMaxBodySize))
	}
	login := func(h http.HandlerFunc) http.Handler {
		return chain(h, limiter.Tier(middleware.TierLogin), middleware.RequestSize(middleware.PublicMaxBodySize))
	}
	user := func(h http.HandlerFunc) http.Handler {
		return chain(h, authn, limiter.Tier(middleware.TierAuthenticated), middleware.RequestSize(middleware.PublicMaxBodySize))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return chain(h, authn, middleware.RequireAdmin, limiter.Tier(middleware.TierAdmin), middleware.RequestSize(middleware.AdminMaxBodySize))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", handlers.Readyz(ready))
	if health != nil {
		mux.Handle("GET /health", health.Health())
	}
	mux.Handle("GET /version", VersionHandler(build))
	mux.Handle("GET /metrics", metrics.Handler())

	// Event applications
	mux.Handle("POST /api/create-event-application/{eventId}", user(appsHandler.Submit))
	mux.Handle("PUT /api/edit-event-application/{applicationId}", admin(appsHandler.Amend))
	mux.Handle("DELETE /api/delete-event-application/{applicationId}", admin(appsHandler.Remove))
	mux.Handle("GET /api/all-applications", admin(appsHandler.ListAll))
	mux.Handle("GET /api/single-application/{applicationId}", user(appsHandler.Get))
	mux.Handle("GET /api/my-applications", user(appsHandler.ListMine))
	mux.Handle("GET /api/applications-of-event/{eventId}", admin(appsHandler.ListOfEvent))
	mux.Handle("GET /api/event/{eventId}/application/{applicationId}", admin(appsHandler.GetOfEvent))

	// Events
	mux.Handle("POST /api/event-registration", admin(eventsHandler.Register))
	mux.Handle("PUT /api/edit-event/{eventId}", admin(eventsHandler.Edit))
	mux.Handle("DELETE /api/delete-event/{eventId}", admin(eventsHandler.Delete))
	mux.Handle("GET /api/events", public(eventsHandler.List))
	mux.Handle("GET /api/admin/events", admin(eventsHandler.ListAdmin))
	mux.Handle("GET /api/single-event/{eventId}", public(eventsHandler.Get))

	// Users
	mux.Handle("POST /api/user/create-user", login(usersHandler.Register))
	mux.Handle("POST /api/user/login", login(usersHandler.Login))
	mux.Handle("POST /api/user/admin-login", login(usersHandler.AdminLogin))
	mux.Handle("POST /api/user/forgot-password", login(usersHandler.ForgotPassword))
	mux.Handle("POST /api/user/reset-password", login(usersHandler.ResetPassword))
	mux.Handle("PUT /api/user/confirm-email", login(usersHandler.ConfirmEmail))
	mux.Handle("GET /api/user", user(usersHandler.Me))
	mux.Handle("GET /api/user/all-users", admin(usersHandler.List))
	mux.Handle("PUT /api/user/update-user", admin(usersHandler.Update))
	mux.Handle("DELETE /api/user/delete-user", admin(usersHandler.Delete))

	// Job house applications
	mux.Handle("POST /api/job-house-application/create-application", user(jobsHandler.Create))
	mux.Handle("PUT /api/job-house-application/update-application", admin(jobsHandler.Update))
	mux.Handle("DELETE /api/job-house-application/delete-application", admin(jobsHandler.Delete))
	mux.Handle("GET /api/job-house-application/all-applications", admin(jobsHandler.ListAll))
	mux.Handle("GET /api/job-house-application/my-applications", user(jobsHandler.ListMine))
	mux.Handle("GET /api/job-house-application/application", user(jobsHandler.Get))

	handler := chain(mux,
		middleware.CorrelationID(logger),
		middleware.Tracing,
		middleware.RequestLogging(),
		metrics.HTTPMiddleware,
		middleware.SecurityHeaders(cfg.IsProduction()),
		middleware.CORS(cfg.CORS, logger),
	)
	return &Router{Handler: handler, RateLimiter: limiter}
}

// chain wraps h so that the first middleware listed runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
