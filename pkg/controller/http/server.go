package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/service/notify"
	"github.com/secmon-lab/compliflow/pkg/usecase"
	"github.com/secmon-lab/compliflow/pkg/utils/metrics"
)

// DefaultMaxBodyBytes bounds JSON request bodies. Attachments use MaxUploadBytes.
const (
	DefaultMaxBodyBytes   = 1 << 20
	DefaultMaxUploadBytes = 10 << 20
)

type Server struct {
	router *chi.Mux
	uc     *usecase.UseCases
	hub    *notify.Hub

	authBurst     int
	authPerSecond float64
	maxUpload     int64
	heartbeat     time.Duration
}

type Options func(*Server)

// WithHub enables the realtime event stream on /api/events
func WithHub(hub *notify.Hub) Options {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithAuthRateLimit throttles login and registration per client IP
func WithAuthRateLimit(burst int, perSecond float64) Options {
	return func(s *Server) {
		s.authBurst = burst
		s.authPerSecond = perSecond
	}
}

func WithMaxUploadBytes(n int64) Options {
	return func(s *Server) {
		s.maxUpload = n
	}
}

// WithHeartbeat sets the keep-alive comment interval of event streams
func WithHeartbeat(d time.Duration) Options {
	return func(s *Server) {
		s.heartbeat = d
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:        r,
		uc:            uc,
		authBurst:     10,
		authPerSecond: 1,
		maxUpload:     DefaultMaxUploadBytes,
		heartbeat:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(metricsRecorder)
	r.Use(middleware.Recoverer)
	r.Use(clientInfo)

	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimit(s.authBurst, s.authPerSecond))
			r.Post("/auth/register", s.registerHandler)
			r.Post("/auth/login", s.loginHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(uc.Auth))

			r.Get("/auth/me", s.meHandler)

			r.Route("/users", func(r chi.Router) {
				r.With(requireRole(types.RoleAdmin, types.RoleManager)).Get("/", s.listUsersHandler)
				r.With(requireRole(types.RoleAdmin)).Post("/", s.createUserHandler)
				r.With(requireRole(types.RoleAdmin)).Post("/{id}/deactivate", s.deactivateUserHandler)
			})

			r.Route("/issues", func(r chi.Router) {
				r.Get("/", s.listIssuesHandler)
				r.Post("/", s.createIssueHandler)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.getIssueHandler)
					r.Put("/", s.updateIssueHandler)
					r.With(requireRole(types.RoleAdmin, types.RoleManager)).Delete("/", s.deleteIssueHandler)
					r.Patch("/transition", s.transitionIssueHandler)
					r.Post("/attachments", s.addAttachmentHandler)
					r.Get("/summaries", s.listSummariesHandler)
					r.Post("/summaries", s.generateSummaryHandler)
				})
			})

			r.Route("/workflows", func(r chi.Router) {
				r.Get("/", s.listWorkflowsHandler)
				r.With(requireRole(types.RoleAdmin)).Post("/", s.createWorkflowHandler)
				r.Get("/{id}", s.getWorkflowHandler)
				r.With(requireRole(types.RoleAdmin)).Put("/{id}", s.updateWorkflowHandler)
				r.With(requireRole(types.RoleAdmin)).Delete("/{id}", s.deleteWorkflowHandler)
			})

			r.Route("/audit", func(r chi.Router) {
				r.With(requireRole(types.RoleAdmin, types.RoleManager)).Get("/", s.queryAuditHandler)
				r.Get("/entity/{entity}/{id}", s.entityAuditHandler)
			})

			if s.hub != nil {
				r.Get("/events", s.eventsHandler)
			}
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
