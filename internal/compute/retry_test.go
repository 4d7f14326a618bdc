package compute

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/geoidx/internal/config"
	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/store"
)

func fastPolicy(retries int) geoerrors.RetryConfig {
	return geoerrors.RetryConfig{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

// failing returns a computer that fails n times with err, then succeeds.
func failing(n int32, err error) (Computer, *atomic.Int32) {
	var calls atomic.Int32
	return Func(func(ctx context.Context, rec store.Record) error {
		if calls.Add(1) <= n {
			return err
		}
		return nil
	}), &calls
}

func TestWithRetry_ZeroRetriesReturnsInner(t *testing.T) {
	inner := &TokenComputer{}
	assert.Same(t, inner, WithRetry(inner, fastPolicy(0)))
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		err       error
		retries   int
		wantErr   bool
		wantCode  string
		wantCalls int32
	}{
		{
			name:      "transient recovers",
			failures:  2,
			err:       geoerrors.TransientCompute("busy", nil),
			retries:   3,
			wantCalls: 3,
		},
		{
			name:      "transient exhausts",
			failures:  10,
			err:       geoerrors.TransientCompute("busy", nil),
			retries:   2,
			wantErr:   true,
			wantCode:  geoerrors.ErrCodeComputeTransient,
			wantCalls: 3,
		},
		{
			name:      "permanent is not retried",
			failures:  10,
			err:       geoerrors.PermanentRecord("bad geometry", nil),
			retries:   3,
			wantErr:   true,
			wantCode:  geoerrors.ErrCodeRecordPermanent,
			wantCalls: 1,
		},
		{
			name:      "storage is not retried",
			failures:  10,
			err:       geoerrors.StorageUnavailable("gone", nil),
			retries:   3,
			wantErr:   true,
			wantCode:  geoerrors.ErrCodeStorageUnavailable,
			wantCalls: 1,
		},
		{
			name:      "unclassified is not retried",
			failures:  10,
			err:       errors.New("boom"),
			retries:   3,
			wantErr:   true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a computer failing a fixed number of times
			inner, calls := failing(tt.failures, tt.err)
			c := WithRetry(inner, fastPolicy(tt.retries))

			// When: computing once through the wrapper
			err := c.Compute(context.Background(), store.Record{ID: 1})

			// Then: the outcome and attempt count match the policy
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, geoerrors.GetCode(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestNew_Providers(t *testing.T) {
	places := newPlaces(t)
	idx := newSearch(t)

	t.Run("tokens by default", func(t *testing.T) {
		cfg := config.NewConfig()
		c, err := New(cfg, places, idx)
		require.NoError(t, err)
		assert.IsType(t, &TokenComputer{}, c)
	})

	t.Run("command", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Compute.Provider = config.ProviderCommand
		cfg.Compute.Command = []string{"sh", "-c", "true"}
		c, err := New(cfg, places, idx)
		require.NoError(t, err)
		assert.IsType(t, &CommandComputer{}, c)
	})

	t.Run("provider names ignore case", func(t *testing.T) {
		tests := []struct {
			provider string
			want     Computer
		}{
			{"Tokens", &TokenComputer{}},
			{"COMMAND", &CommandComputer{}},
		}
		for _, tt := range tests {
			cfg := config.NewConfig()
			cfg.Compute.Provider = tt.provider
			cfg.Compute.Command = []string{"sh", "-c", "true"}
			require.NoError(t, cfg.Validate(), tt.provider)

			c, err := New(cfg, places, idx)
			require.NoError(t, err, tt.provider)
			assert.IsType(t, tt.want, c, tt.provider)
		}
	})

	t.Run("retry wrapper", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Compute.Retry.MaxRetries = 2
		c, err := New(cfg, places, idx)
		require.NoError(t, err)
		assert.IsType(t, &retrying{}, c)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Compute.Provider = "magic"
		_, err := New(cfg, places, idx)
		assert.True(t, geoerrors.IsInvalidConfiguration(err))
	})
}
