package maprender

import (
	"log/slog"

	"github.com/IvanBrykalov/maprender/internal/logger"
)

// SetLogger configures the logger used by maprender and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Levels used:
//   - [slog.LevelDebug]: cache promotions, queue clears, per-frame details
//   - [slog.LevelInfo]: lifecycle events (theme built, workers started/stopped)
//   - [slog.LevelWarn]: unreachable theme rules, failed renders, file cache degradation
//
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) { logger.Set(l) }

// Logger returns the logger currently in use.
func Logger() *slog.Logger { return logger.Get() }
