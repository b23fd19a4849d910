// Package app assembles the RiskCheck services from configuration. The CLI
// commands and the HTTP server share this wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppiankov/riskcheck/internal/cache"
	"github.com/ppiankov/riskcheck/internal/community"
	"github.com/ppiankov/riskcheck/internal/entity"
	"github.com/ppiankov/riskcheck/internal/evidence"
	"github.com/ppiankov/riskcheck/internal/footprint"
	"github.com/ppiankov/riskcheck/internal/metrics"
	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/pipeline"
	"github.com/ppiankov/riskcheck/internal/render"
	"github.com/ppiankov/riskcheck/internal/score"
	"github.com/ppiankov/riskcheck/internal/store/postgres"
	"github.com/ppiankov/riskcheck/internal/util"
	"github.com/ppiankov/riskcheck/internal/validate"
	"github.com/ppiankov/riskcheck/internal/worker"
)

// App holds the wired services
type App struct {
	Config   *model.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Pipeline *pipeline.Pipeline
	Reports  *community.Service
	Files    *evidence.Store
	Renderer *render.Renderer
	Pool     *pgxpool.Pool // nil when running on memory stores
}

// Options overrides parts of the wiring
type Options struct {
	Prober footprint.Prober // nil builds the network probe from config
}

// New builds every service described by cfg. With an empty database URL
// the stores live in memory and vanish with the process.
func New(ctx context.Context, cfg *model.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := metrics.New()
	normalizer := entity.NewNormalizer(cfg.Probe.PhoneRegion)
	validator := validate.NewValidator(normalizer, cfg.Probe.MaxLinkedAccounts)

	a := &App{Config: cfg, Logger: logger, Metrics: m, Renderer: render.NewRenderer(cfg.Brand, true)}

	var (
		reportStore community.Store
		checkRepo   pipeline.CheckRepository
		index       evidence.Index
	)
	if cfg.Database.URL != "" {
		pool, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		if cfg.Database.Migrate {
			version, err := postgres.Migrate(ctx, pool)
			if err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info("database migrated", "version", version)
		}
		reportStore = postgres.NewReportRepo(pool)
		checkRepo = postgres.NewCheckRepo(pool)
		index = postgres.NewEvidenceIndex(pool)
	} else {
		logger.Warn("no database configured, using in-memory stores")
		reportStore = community.NewMemoryStore()
		checkRepo = pipeline.NewMemoryRepository()
		index = evidence.NewMemoryIndex()
	}

	a.Files = evidence.NewStore(
		evidence.NewDiskBlobs(cfg.Storage.UploadDir),
		index,
		nil,
		cfg.Evidence.MaxUploadBytes,
		cfg.Evidence.SimilarityThreshold,
	)
	a.Files.SetMaxPixels(cfg.Evidence.MaxImagePixels)
	loaded, err := a.Files.LoadMatcher(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load image index: %w", err)
	}
	logger.Debug("image index loaded", "hashes", loaded)

	a.Reports = community.NewService(community.Options{
		Store:       reportStore,
		Validator:   validator,
		Attachments: a.Files,
		Metrics:     m,
		Logger:      logger,
	})

	prober := opts.Prober
	if prober == nil {
		prober = NewProbe(cfg, normalizer, m, logger)
	}
	a.Pipeline = pipeline.New(pipeline.Options{
		Validator: validator,
		Prober:    prober,
		Scorer:    score.NewScorer(),
		Reports:   a.Reports,
		Evidence:  a.Files,
		Checks:    checkRepo,
		Timeout:   cfg.Server.CheckTimeout,
		Metrics:   m,
		Logger:    logger,
	})
	return a, nil
}

// NewProbe builds the network footprint probe. Search is skipped, and
// reported as Unknown, when no credentials are configured.
func NewProbe(cfg *model.Config, normalizer *entity.Normalizer, m *metrics.Metrics, logger *slog.Logger) *footprint.Probe {
	client := util.NewHTTPClient(cfg.HTTP)

	var robots *util.RobotsChecker
	if cfg.HTTP.RespectRobots {
		robots = util.NewRobotsChecker(client, cfg.HTTP.UserAgent)
	}

	var search footprint.SearchProvider
	if cfg.Search.Enabled() {
		search = footprint.NewCachedSearch(
			footprint.NewGoogleSearch(client, cfg.Search),
			cache.New(cfg.Cache),
			worker.NewLimiter(cfg.Search.RequestsPerSecond, cfg.Search.Burst),
			cfg.Search,
		)
	}

	return footprint.NewProbe(footprint.Options{
		Search:       search,
		Reachability: footprint.NewReachability(client, robots, cfg.HTTP),
		RDAP:         footprint.NewRDAPClient(client, cfg.Probe.RDAPEndpoint),
		Resolver:     net.DefaultResolver,
		Normalizer:   normalizer,
		Config:       cfg.Probe,
		StrongMin:    cfg.Search.StrongMinResults,
		Logger:       logger,
		Metrics:      m,
	})
}

// Health reports whether the backing database answers
func (a *App) Health(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	return postgres.HealthCheck(ctx, a.Pool)
}

// Close releases the database pool
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
