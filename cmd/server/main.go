package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/internal/api"
	"github.com/snapstream-io/snapstream/internal/auth"
	"github.com/snapstream-io/snapstream/internal/config"
	"github.com/snapstream-io/snapstream/internal/gateway"
	"github.com/snapstream-io/snapstream/internal/metrics"
	"github.com/snapstream-io/snapstream/internal/notify"
	"github.com/snapstream-io/snapstream/internal/rooms"
	"github.com/snapstream-io/snapstream/internal/status"
	"github.com/snapstream-io/snapstream/internal/watcher"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type flags struct {
	configPath string
	httpAddr   string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "snapstream-server",
		Short: "Snapstream server — real-time status distribution for event photography",
		Long: `Snapstream server watches the capture host's status snapshots (DSLR
tethering, backup runs, uploads, system load) and distributes changes to
gallery and dashboard clients over WebSocket rooms, with REST snapshot
endpoints backing the client-side polling fallback.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&f.configPath, "config", envOrDefault("SNAPSTREAM_CONFIG", ""), "Path to YAML config file (optional)")
	root.PersistentFlags().StringVar(&f.httpAddr, "http-addr", envOrDefault("SNAPSTREAM_HTTP_ADDR", ""), "HTTP listen address (overrides config)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", envOrDefault("SNAPSTREAM_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("snapstream-server %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, f *flags) error {
	logger, err := buildLogger(f.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.httpAddr != "" {
		cfg.Server.HTTPAddr = f.httpAddr
	}

	logger.Info("starting snapstream server",
		zap.String("version", version),
		zap.String("http_addr", cfg.Server.HTTPAddr),
		zap.Int("watchers", len(cfg.Watchers)),
		zap.String("log_level", f.logLevel),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	verifier, err := buildVerifier(cfg.Auth, logger)
	if err != nil {
		return err
	}

	registry := rooms.NewRegistry()
	store := status.NewStore()
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	hub := gateway.NewHub(gateway.Config{
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		TimeoutMultiple:   cfg.Server.TimeoutMultiple,
		RateLimit:         cfg.Server.RateLimit,
		RateWindow:        cfg.Server.RateWindow,
		ServerVersion:     version,
	}, registry, store, m, clockwork.NewRealClock(), logger)
	go hub.Run(ctx)

	history := notify.NewHistory(cfg.Notifications.HistorySize)
	notifier := notify.NewNotifier(hub, history, logger)

	// Watchers dispatch through the deriver tap so status transitions also
	// produce admin notifications.
	dispatcher := notify.NewDeriver(notifier, logger).Wrap(hub)

	runner, err := watcher.NewRunner(logger)
	if err != nil {
		return err
	}
	for _, wc := range cfg.Watchers {
		w, err := watcher.New(watcher.NewFileSource(wc.Name, wc.Path), wc.Room, wc.Interval, dispatcher, m, logger)
		if err != nil {
			return fmt.Errorf("configuring watcher %q: %w", wc.Name, err)
		}
		if err := runner.Add(w); err != nil {
			return err
		}
	}
	if cfg.System.Enabled {
		w, err := watcher.New(watcher.NewSystemSource(cfg.System.DiskPath), rooms.SystemStatus, cfg.System.Interval, dispatcher, m, logger)
		if err != nil {
			return fmt.Errorf("configuring system watcher: %w", err)
		}
		if err := runner.Add(w); err != nil {
			return err
		}
	}
	runner.Start()
	defer runner.Shutdown() //nolint:errcheck

	router := api.NewRouter(api.RouterConfig{
		Hub:      hub,
		Store:    store,
		History:  history,
		Verifier: verifier,
		Registry: promReg,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down snapstream server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	return nil
}

// buildVerifier loads the RS256 public key, or generates an ephemeral key
// pair when none is configured. The ephemeral mode verifies nothing issued
// elsewhere, so every client connects as guest — acceptable for development.
func buildVerifier(cfg config.AuthConfig, logger *zap.Logger) (*auth.Verifier, error) {
	if cfg.PublicKeyPath != "" {
		return auth.NewVerifierFromFile(cfg.PublicKeyPath, cfg.Issuer)
	}
	logger.Warn("no public key configured, using ephemeral keys; all clients connect as guests")
	return auth.NewVerifierGenerated(cfg.Issuer)
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
