// Package daemonrun hosts the galleryvault daemon process: logging setup,
// log retention, the pid file and signal-driven shutdown.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"galleryvault/internal/config"
	"galleryvault/internal/daemon"
	"galleryvault/internal/logging"
	"galleryvault/internal/services"
)

// keepRunLogs newest run logs are kept regardless of age.
const keepRunLogs = 5

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the galleryvault daemon and blocks until cmdCtx is canceled or
// the process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("galleryvault-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		ComponentLevels:  cfg.Logging.ComponentOverrides,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.PruneLogs(logger, logging.RetentionPolicy{
		Dir:        cfg.Paths.LogDir,
		Pattern:    "galleryvault-*.log",
		MaxAge:     time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour,
		KeepNewest: keepRunLogs,
		Exclude:    []string{logPath},
	})
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "galleryvault.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	svc, err := services.New(cfg, logger)
	if err != nil {
		logger.Error("build services", logging.Error(err))
		return err
	}
	defer svc.Close()

	d, err := daemon.New(svc, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("galleryvault daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	providers := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		if cfg.ProviderEnabled(name) {
			providers = append(providers, name)
		}
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("archive_dir", cfg.Paths.ArchiveDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", cfg.Paths.APIToken != ""),
		logging.Bool("transmission_enabled", cfg.Transmission.Enabled),
		logging.Bool("metrics_enabled", cfg.Metrics.Enabled),
		logging.String("verify_cron", cfg.Workflow.VerifyCron),
		logging.String("feed_cron", cfg.Workflow.FeedCron),
		logging.Any("configured_providers", providers),
	)
}
