package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/library-management/internal/ratelimit"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

// Version is reported by GET /.
const Version = "1.0.0"

// Services are the dependencies of the HTTP API.
type Services struct {
	Books      *service.BookService
	Borrowers  *service.BorrowerService
	Loans      *service.LoanService
	Reconciler *service.Reconciler
}

// RouterConfig carries transport settings.
type RouterConfig struct {
	AllowedOrigins []string
	// Limiter, if set, throttles mutating requests per client IP.
	Limiter *ratelimit.KeyedRateLimiter
}

// NewRouter builds the chi router serving the API.
func NewRouter(svc Services, cfg RouterConfig, log *slog.Logger) http.Handler {
	books := NewBookHandler(svc.Books, log)
	users := NewUserHandler(svc.Borrowers, svc.Loans, log)
	assignments := NewAssignmentHandler(svc.Loans, log)
	admin := NewAdminHandler(svc.Reconciler, log)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(log))
	r.Use(CORS(cfg.AllowedOrigins))

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	r.Get("/", APIInfo(Version))
	r.Get("/health", HealthCheck)

	r.Route("/api", func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(RateLimit(cfg.Limiter, log))
		}

		r.Route("/books", func(r chi.Router) {
			r.Get("/", books.List)
			r.Get("/available", books.Available)
			r.Get("/{id}", books.Get)
			r.Post("/", books.Create)
			r.Put("/{id}", books.Update)
			r.Delete("/{id}", books.Delete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", users.List)
			r.Get("/{id}", users.Get)
			r.Get("/{id}/assignments", users.Assignments)
			r.Post("/", users.Create)
			r.Put("/{id}", users.Update)
			r.Delete("/{id}", users.Delete)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", assignments.All)
			r.Get("/active", assignments.Active)
			r.Get("/history", assignments.History)
			r.Get("/overdue", assignments.Overdue)
			r.Post("/issue", assignments.Issue)
			r.Put("/return/{id}", assignments.Return)
		})

		r.Post("/admin/reconcile", admin.Reconcile)
	})

	return r
}
