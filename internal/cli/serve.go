package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/riskcheck/internal/app"
	"github.com/ppiankov/riskcheck/internal/httpapi"
	"github.com/ppiankov/riskcheck/internal/logging"
	"github.com/ppiankov/riskcheck/internal/worker"
)

// limiterSweepInterval controls how often idle client buckets are dropped
const limiterSweepInterval = 5 * time.Minute

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes checks, evidence uploads and community moderation over HTTP.

Without DATABASE_URL all records are kept in memory (development mode).
Moderation endpoints are disabled until ADMIN_TOKEN is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	logger := logging.Init(cfg.Log)

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	if cfg.Admin.Token == "" {
		logger.Warn("ADMIN_TOKEN not set, moderation endpoints are disabled")
	}
	if !cfg.Search.Enabled() {
		logger.Warn("search credentials not set, footprint search will report Unknown")
	}

	limiter := worker.NewLimiter(cfg.Server.SubmitRate, cfg.Server.SubmitBurst)
	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Forget(); n > 0 {
					logger.Debug("dropped idle rate limit buckets", "count", n)
				}
			}
		}
	}()

	proxies, err := httpapi.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}
	srv := httpapi.New(httpapi.Options{
		Checks:     a.Pipeline,
		Reports:    a.Reports,
		Files:      a.Files,
		Renderer:   a.Renderer,
		Metrics:    a.Metrics,
		Logger:     logger,
		AdminToken: cfg.Admin.Token,
		Origins:    cfg.Server.FrontendOrigins,
		Limiter:    limiter,
		Health:     a.Health,

		TrustedProxies: proxies,
	}).NewHTTPServer(cfg.Server)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
