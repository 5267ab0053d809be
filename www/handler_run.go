package www

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const runTimeout = 1 * time.Minute

// NewRunHandler starts a run in the background and answers 202 right away.
func NewRunHandler(logger *slog.Logger, run func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			defer cancel()
			if err := run(ctx); err != nil {
				logger.Warn("triggered run failed", slog.Any("error", err))
			}
		}()
		writeJSON(w, logger, http.StatusAccepted, map[string]string{"status": "started"})
	}
}
