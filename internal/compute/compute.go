// Package compute provides the per-record index computation.
//
// A Computer derives the search attributes of one place. It is an opaque
// unit of work to the scheduler: the scheduler only cares whether it
// succeeded and, if not, whether the failure is worth retrying later.
//
// Errors returned by a Computer should be classified with
// errors.TransientCompute or errors.PermanentRecord. Errors without a
// classification are treated as permanent by the executor.
package compute

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/geoidx/internal/config"
	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/searchindex"
	"github.com/Aman-CERP/geoidx/internal/store"
)

// Computer computes the index data of a single record.
// Implementations must be safe for concurrent use.
type Computer interface {
	Compute(ctx context.Context, rec store.Record) error
}

// Func adapts a function to the Computer interface.
type Func func(ctx context.Context, rec store.Record) error

// Compute calls f(ctx, rec).
func (f Func) Compute(ctx context.Context, rec store.Record) error {
	return f(ctx, rec)
}

// New builds the configured provider, wrapped with retry when
// compute.retry.max_retries is positive.
func New(cfg *config.Config, places store.PlaceStore, index searchindex.Index) (Computer, error) {
	var c Computer
	switch strings.ToLower(cfg.Compute.Provider) {
	case config.ProviderTokens, "":
		c = NewTokenComputer(places, index, cfg.Compute.CacheSize)
	case config.ProviderCommand:
		cmd, err := NewCommandComputer(cfg.Compute.Command, cfg.ComputeTimeout())
		if err != nil {
			return nil, err
		}
		c = cmd
	default:
		return nil, geoerrors.InvalidConfiguration(
			fmt.Sprintf("unknown compute provider %q", cfg.Compute.Provider), nil).
			WithSuggestion("Use 'tokens' or 'command'")
	}

	return WithRetry(c, cfg.RetryPolicy()), nil
}
