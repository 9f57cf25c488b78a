package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"

	"github.com/openscribe/transcribe-core/internal/obslog"
	"github.com/openscribe/transcribe-core/stt"
)

// chainRetrier drives the Hyprnote-routing mode's provider chain: it tries
// each provider in the chain the Router returns, retrying a single
// provider with exponential backoff+jitter up to the Router's configured
// NumRetries before falling through, and recording each failed attempt
// against that provider's health, per spec.md §4.6.
type chainRetrier struct {
	router  *stt.Router
	metrics *Metrics
	logger  obslog.Logger
}

func newChainRetrier(router *stt.Router, metrics *Metrics, logger obslog.Logger) *chainRetrier {
	if logger == nil {
		logger = obslog.NoOpLogger{}
	}
	return &chainRetrier{router: router, metrics: metrics, logger: logger}
}

// attempt runs fn once per provider in priority order (as filtered by
// languages/available), retrying each provider per the Router's RetryConfig
// before moving to the next. fn is responsible for dialing and running a
// single attempt against the given provider; a nil error means success.
func (cr *chainRetrier) attempt(ctx context.Context, languages []stt.Language, available map[stt.Provider]bool, fn func(context.Context, stt.Provider) error) (stt.Provider, error) {
	chain := cr.router.SelectProviderChain(languages, available)
	if len(chain) == 0 {
		return "", errors.New("relay: no available provider supports the requested languages")
	}
	retry := cr.router.Retry()

	var lastErr error
	for _, provider := range chain {
		b := backoff.NewExponentialBackOff()
		b.MaxInterval = retry.MaxDelay

		attempts := 0
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			attempts++
			if attempts > 1 {
				cr.metrics.RecordRetry(ctx, string(provider))
			}
			// Every failed attempt counts against the provider's health,
			// not just the exhaustion of its retries.
			if err := fn(ctx, provider); err != nil {
				cr.router.RecordFailure(provider)
				return struct{}{}, err
			}
			return struct{}{}, nil
		},
			backoff.WithBackOff(b),
			backoff.WithMaxTries(uint(retry.NumRetries+1)),
		)

		if err == nil {
			cr.router.RecordSuccess(provider)
			return provider, nil
		}

		lastErr = err
		cr.metrics.RecordProviderFailure(ctx, string(provider))
		cr.logger.Warn("relay_provider_chain_exhausted", "provider", string(provider), "error", err.Error())
	}

	return "", fmt.Errorf("relay: every provider in the chain failed: %w", lastErr)
}
