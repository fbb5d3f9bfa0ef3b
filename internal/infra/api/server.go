package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/infra/logging"
	"a2z-marketplace/internal/usecase"
)

// UseCases groups everything the HTTP layer calls into.
type UseCases struct {
	Profiles  usecase.ProfileUseCase
	Payments  usecase.PaymentUseCase
	Webhooks  usecase.WebhookUseCase
	Reset     usecase.ResetUseCase
	Posts     usecase.PostUseCase
	Analytics usecase.AnalyticsUseCase
	Storage   usecase.StorageUseCase
}

type Options struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	CronSecret     string
	TrustProxy     bool
	RequestTimeout time.Duration
	// Metrics is served on /metrics; nil uses the default gatherer.
	Metrics http.Handler
}

// Server exposes the marketplace JSON API, provider webhooks and the cron trigger.
type Server struct {
	profiles   usecase.ProfileUseCase
	payments   usecase.PaymentUseCase
	webhooks   usecase.WebhookUseCase
	reset      usecase.ResetUseCase
	posts      usecase.PostUseCase
	analytics  usecase.AnalyticsUseCase
	storage    usecase.StorageUseCase
	auth       *Authenticator
	cronSecret string
	trustProxy bool
	timeout    time.Duration
	metrics    http.Handler
	log        *zerolog.Logger
}

func NewServer(uc UseCases, opts Options, logger *zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	return &Server{
		profiles:   uc.Profiles,
		payments:   uc.Payments,
		webhooks:   uc.Webhooks,
		reset:      uc.Reset,
		posts:      uc.Posts,
		analytics:  uc.Analytics,
		storage:    uc.Storage,
		auth:       NewAuthenticator(opts.JWTSecret, opts.JWTIssuer, opts.JWTAudience),
		cronSecret: opts.CronSecret,
		trustProxy: opts.TrustProxy,
		timeout:    opts.RequestTimeout,
		metrics:    opts.Metrics,
		log:        logging.Component(logger, "http"),
	}
}

// Handler builds the router with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	// inside the router so RequestLog sees the matched pattern
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.timeout))
	s.Register(r)
	return r
}

// Register attaches every route to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "OK")
	})
	r.Method(http.MethodGet, "/metrics", s.metrics)
	r.Get("/tiers", s.handleTiers)

	r.Post("/webhooks/{provider}", s.handleWebhook)
	r.With(s.RequireCronSecret).Post("/cron/free-account-reset", s.handleFreeAccountReset)

	r.Get("/p/{username}/{slug}", s.handlePublicPost)
	// increments are public; edits authenticate inside the handler
	r.Patch("/posts/{id}", s.handlePatchPost)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireUser)

		r.Get("/me", s.handleMe)
		r.Post("/me/trial", s.handleStartTrial)

		r.Post("/payments/create", s.handleCreatePayment)
		r.Get("/payments/{reference}", s.handleGetPayment)

		r.Post("/posts", s.handleCreatePost)
		r.Get("/posts", s.handleListPosts)
		r.Delete("/posts/{id}", s.handleDeletePost)

		r.Post("/media/upload-url", s.handleUploadURL)
	})
}

func (s *Server) handleTiers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tiers": model.AllPolicies()})
}
