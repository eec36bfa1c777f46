// Package main is the snapstream-monitor binary: a terminal subscriber that
// joins status rooms and logs every event. Useful on a second machine at the
// venue to keep an eye on the capture host, and as a smoke test for the
// whole delivery path including the polling fallback.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/pkg/client"
	"github.com/snapstream-io/snapstream/shared/types"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	serverURL string
	token     string
	rooms     string
	network   string
	logLevel  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "snapstream-monitor",
		Short: "Snapstream monitor — terminal subscriber for status rooms",
		Long: `Snapstream monitor connects to a snapstream server, joins the given
rooms, and logs every event it receives. When the connection drops it keeps
reporting via the REST polling fallback and reconnects automatically.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.serverURL, "server-url", envOrDefault("SNAPSTREAM_SERVER_URL", "http://localhost:8080"), "Snapstream server base URL")
	root.PersistentFlags().StringVar(&cfg.token, "token", envOrDefault("SNAPSTREAM_TOKEN", ""), "JWT for privileged rooms (optional)")
	root.PersistentFlags().StringVar(&cfg.rooms, "rooms", envOrDefault("SNAPSTREAM_ROOMS", strings.Join([]string{
		client.RoomDSLRMonitoring,
		client.RoomBackupStatus,
		client.RoomUploadProgress,
		client.RoomSystemStatus,
	}, ",")), "Comma-separated rooms to join")
	root.PersistentFlags().StringVar(&cfg.network, "network", envOrDefault("SNAPSTREAM_NETWORK", ""), "Network class hint (fast, slow, constrained)")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("SNAPSTREAM_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("snapstream-monitor %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r, err := client.New(client.Options{
		ServerURL:  cfg.serverURL,
		Token:      cfg.token,
		ClientType: types.ClientDesktop,
		Network:    types.NetworkClass(cfg.network),
		Logger:     logger,
		OnStateChange: func(s client.State, polling bool) {
			logger.Info("connection state changed",
				zap.String("state", string(s)),
				zap.Bool("polling", polling),
			)
		},
		OnGiveUp: func() {
			logger.Warn("automatic reconnection stopped; still polling — send SIGINT to exit")
		},
	})
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck

	r.Start()
	for _, room := range strings.Split(cfg.rooms, ",") {
		room = strings.TrimSpace(room)
		if room == "" {
			continue
		}
		if err := r.Join(room); err != nil {
			logger.Warn("join failed", zap.String("room", room), zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down snapstream monitor")
			return nil
		case ev, ok := <-r.Events():
			if !ok {
				return nil
			}
			logEvent(logger, ev)
		}
	}
}

func logEvent(logger *zap.Logger, ev types.Event) {
	fields := []zap.Field{
		zap.String("type", string(ev.Type)),
		zap.String("source", ev.Source),
		zap.Time("timestamp", ev.Timestamp),
	}
	if ev.Room != "" {
		fields = append(fields, zap.String("room", ev.Room))
	}
	if len(ev.Payload) > 0 {
		fields = append(fields, zap.ByteString("payload", ev.Payload))
	}

	switch ev.Type {
	case types.EventError:
		logger.Warn("server error event", fields...)
	case types.EventHeartbeatResponse:
		logger.Debug("heartbeat", fields...)
	default:
		logger.Info("event", fields...)
	}
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
