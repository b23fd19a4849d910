// Package httpapi exposes checks, uploads and community moderation over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ppiankov/riskcheck/internal/community"
	"github.com/ppiankov/riskcheck/internal/evidence"
	"github.com/ppiankov/riskcheck/internal/metrics"
	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/render"
	"github.com/ppiankov/riskcheck/internal/worker"
)

// maxJSONBody caps request bodies for JSON endpoints
const maxJSONBody = 1 << 20

// Checks runs and loads checks
type Checks interface {
	RunCheck(ctx context.Context, req model.CheckRequest) (*model.Check, error)
	GetCheck(ctx context.Context, id string) (*model.Check, error)
}

// Reports is the community moderation service
type Reports interface {
	Submit(ctx context.Context, req model.ReportRequest) (*model.CommunityReport, error)
	Approve(ctx context.Context, id, reviewer string) (*model.CommunityReport, error)
	Reject(ctx context.Context, id, reviewer string) (*model.CommunityReport, error)
	Get(ctx context.Context, id string) (*model.CommunityReport, error)
	List(ctx context.Context, f community.ListFilter) ([]*model.CommunityReport, error)
}

// Files is the evidence store
type Files interface {
	Put(ctx context.Context, up evidence.Upload) (model.EvidenceFile, bool, error)
	Get(ctx context.Context, hash string) ([]byte, model.EvidenceFile, error)
	MaxBytes() int64
}

// Options wires the server
type Options struct {
	Checks     Checks
	Reports    Reports
	Files      Files
	Renderer   *render.Renderer
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	AdminToken string
	Origins    []string
	Limiter    *worker.Limiter             // Per-client limit on submissions; nil disables
	Health     func(context.Context) error // Optional readiness probe

	// Proxies whose X-Forwarded-For and X-Real-IP are believed. Empty
	// means the TCP peer is always the client.
	TrustedProxies []netip.Prefix
}

// Server holds the HTTP handlers
type Server struct {
	checks     Checks
	reports    Reports
	files      Files
	renderer   *render.Renderer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	adminToken string
	origins    []string
	limiter    *worker.Limiter
	health     func(context.Context) error
	proxies    []netip.Prefix
}

// New creates a server
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewRenderer(model.BrandConfig{}, true)
	}
	return &Server{
		checks:     opts.Checks,
		reports:    opts.Reports,
		files:      opts.Files,
		renderer:   opts.Renderer,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With("component", "httpapi"),
		adminToken: opts.AdminToken,
		origins:    opts.Origins,
		limiter:    opts.Limiter,
		health:     opts.Health,
		proxies:    opts.TrustedProxies,
	}
}

// Routes builds the router
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.realIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Admin-Token", "X-Reviewer"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/check", s.handleCheck)
			r.Post("/community/report", s.handleSubmitReport)
			r.Post("/upload", s.handleUpload)
		})
		r.Get("/check/{id}", s.handleGetCheck)
		r.Get("/report/{id}/pdf", s.handleCheckPDF)
		r.Get("/file/{hash}", s.handleFile)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/reports", s.handleListReports)
			r.Get("/reports/{id}", s.handleGetReport)
			r.Post("/reports/{id}/approve", s.handleApprove)
			r.Post("/reports/{id}/reject", s.handleReject)
		})
	})
	return r
}

// NewHTTPServer wraps the router with timeouts from cfg
func (s *Server) NewHTTPServer(cfg model.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
