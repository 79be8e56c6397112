package newsletter

import (
	"context"
	"log/slog"
)

// bestEffort runs a call whose failure must not abort the surrounding
// operation. The error is logged and reported only as a boolean.
func bestEffort(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error, attrs ...any) bool {
	if err := fn(ctx); err != nil {
		logger.Warn("best-effort call failed",
			append([]any{"op", op, "error", err}, attrs...)...,
		)
		return false
	}
	return true
}
