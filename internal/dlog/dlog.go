// Package dlog builds the process-wide zap.Logger for cmd/dupsentry and
// stamps every scan with a google/uuid identifier, so a single CI log
// stream can be grep'd for one scan's diagnostics. The core (dupscan and
// its internal/ packages) never imports it; logging is a CLI-only
// concern.
package dlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/google/uuid"
)

// New builds a production-configured logger, dropped to debug level when
// verbose is set.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// NewScanID mints a fresh identifier for one scan invocation. Every log
// line the CLI emits for that scan carries it as a structured field so
// lines from concurrent CI jobs in the same aggregated log can be told
// apart.
func NewScanID() string {
	return uuid.NewString()
}

// ScanField returns the structured field every log line for scanID should
// carry.
func ScanField(scanID string) zap.Field {
	return zap.String("scanId", scanID)
}
