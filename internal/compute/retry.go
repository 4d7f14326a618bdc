package compute

import (
	"context"
	"log/slog"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/store"
)

// retrying retries transient failures of the wrapped computer.
type retrying struct {
	inner Computer
	cfg   geoerrors.RetryConfig
}

// WithRetry wraps c so transient failures are retried with exponential
// backoff. Permanent and storage errors are returned on first sight.
// A policy with MaxRetries <= 0 returns c unchanged.
func WithRetry(c Computer, cfg geoerrors.RetryConfig) Computer {
	if cfg.MaxRetries <= 0 {
		return c
	}
	cfg.ShouldRetry = geoerrors.IsTransient
	return &retrying{inner: c, cfg: cfg}
}

// Compute implements Computer.
func (r *retrying) Compute(ctx context.Context, rec store.Record) error {
	attempt := 0
	return geoerrors.Retry(ctx, r.cfg, func() error {
		attempt++
		err := r.inner.Compute(ctx, rec)
		if err != nil && attempt <= r.cfg.MaxRetries && geoerrors.IsTransient(err) {
			slog.Debug("compute_retry",
				slog.Int64("place_id", rec.ID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		}
		return err
	})
}
