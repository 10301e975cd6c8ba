package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLogLevel    = "MICROFI_LOG_LEVEL"
	EnvLogEncoding = "MICROFI_LOG_ENCODING"
)

// New builds the process logger: production defaults on stderr, debug level
// when verbose. The MICROFI_LOG_* environment variables take precedence.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	applyEnvOverrides(&config)
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func applyEnvOverrides(config *zap.Config) {
	raw := os.Getenv(EnvLogLevel)
	if isOff(raw) {
		config.Level = zap.NewAtomicLevelAt(zapcore.FatalLevel + 1)
	} else if lvl, ok := parseLevel(raw); ok {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	switch enc := strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogEncoding))); enc {
	case "json", "console":
		config.Encoding = enc
	}
}

func isOff(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "disabled", "disable", "off", "none":
		return true
	}
	return false
}

func parseLevel(raw string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}
