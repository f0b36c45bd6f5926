package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sirosfoundation/go-xop/pkg/xop"
)

// Generator returns the configured Content-ID generator
func (c EncodingConfig) Generator() xop.ContentIDGenerator {
	switch c.IDs {
	case IDsCounter:
		return &xop.CounterGenerator{Domain: c.Domain}
	case IDsContent:
		return xop.ContentAddressedGenerator{Domain: c.Domain}
	default:
		return xop.UUIDGenerator{Domain: c.Domain}
	}
}

// OptimizationPolicy returns the configured policy
func (c EncodingConfig) OptimizationPolicy() xop.OptimizationPolicy {
	switch c.Policy {
	case PolicyAll:
		return xop.PolicyAll
	case PolicyThreshold:
		return xop.ThresholdPolicy(c.Threshold)
	default:
		return xop.PolicyDefault
	}
}

// Options returns encoder options for this configuration
func (c EncodingConfig) Options(logger *slog.Logger) []xop.Option {
	return []xop.Option{
		xop.WithGenerator(c.Generator()),
		xop.WithPolicy(c.OptimizationPolicy()),
		xop.WithLogger(logger),
	}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level must be 'debug', 'info', 'warn' or 'error', got '%s'", level)
	}
}

// NewLogger builds a logger writing to w
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
