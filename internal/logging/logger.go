package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"galleryvault/internal/config"
)

// LogFileName is the name of the daemon log inside the configured log directory.
const LogFileName = "galleryvault.log"

// Options describes logger construction parameters.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
	// ComponentLevels maps component names to a level that replaces Level
	// for loggers carrying that component.
	ComponentLevels map[string]string
	// Writer replaces the configured output paths when set.
	Writer io.Writer
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	overrides := make(map[string]slog.Level, len(opts.ComponentLevels))
	floor := level
	for component, raw := range opts.ComponentLevels {
		lvl := parseLevel(raw)
		overrides[component] = lvl
		if lvl < floor {
			floor = lvl
		}
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(floor)

	outputPaths := defaultSlice(opts.OutputPaths, []string{"stdout"})
	errorPaths := defaultSlice(opts.ErrorOutputPaths, []string{"stderr"})
	output := opts.Writer
	if output == nil {
		var err error
		output, err = openWriters(outputPaths, errorPaths)
		if err != nil {
			return nil, err
		}
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = newJSONHandler(output, levelVar, addSource)
	case "console":
		color := opts.Writer == nil && terminalOnly(outputPaths, errorPaths)
		handler = newPrettyHandler(output, levelVar, addSource, color)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	return slog.New(newComponentLevelHandler(handler, level, overrides)), nil
}

// NewFromConfig creates a logger writing to stdout and the configured log file.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	outputPaths := []string{"stdout"}
	errorOutputs := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		logPath := filepath.Join(cfg.Paths.LogDir, LogFileName)
		outputPaths = append(outputPaths, logPath)
		errorOutputs = append(errorOutputs, logPath)
	}

	return New(Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: errorOutputs,
		ComponentLevels:  cfg.Logging.ComponentOverrides,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultSlice(value []string, fallback []string) []string {
	if len(value) == 0 {
		value = fallback
	}
	cp := make([]string, len(value))
	copy(cp, value)
	return cp
}

// terminalOnly reports whether every destination is a standard stream
// attached to a terminal.
func terminalOnly(paths ...[]string) bool {
	for _, group := range paths {
		for _, path := range group {
			var fd uintptr
			switch strings.TrimSpace(path) {
			case "stdout":
				fd = os.Stdout.Fd()
			case "stderr":
				fd = os.Stderr.Fd()
			default:
				return false
			}
			if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
				return false
			}
		}
	}
	return true
}

func openWriters(outputPaths []string, errorPaths []string) (io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer
	combined := append([]string{}, outputPaths...)
	combined = append(combined, errorPaths...)

	for _, path := range combined {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			// stderr duplicates stdout on a console; keep it only when alone.
			if len(outputPaths) == 0 {
				writers = append(writers, os.Stderr)
			}
		default:
			if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			writers = append(writers, file)
		}
	}

	switch len(writers) {
	case 0:
		return io.Discard, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
