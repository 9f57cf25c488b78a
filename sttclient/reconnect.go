package sttclient

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"

	"github.com/openscribe/transcribe-core/internal/obslog"
	"github.com/openscribe/transcribe-core/stt"
)

// ReconnectingClient wraps Client with backoff-bounded reconnect on
// transient disconnect, and falls through the Router's provider chain when
// retries against the current provider are exhausted. Grounded on
// spec.md §4.4/§9's reconnect-with-backoff requirement and on the Router's
// RetryConfig (NumRetries, MaxDelay) from
// _examples/original_source/crates/transcribe-proxy/src/hyprnote_routing.rs.
type ReconnectingClient struct {
	adapters map[stt.Provider]stt.RealtimeSttAdapter
	router   *stt.Router
	cfgFor   func(stt.Provider) Config
	logger   obslog.Logger

	active *Client
}

// NewReconnectingClient builds a ReconnectingClient. cfgFor returns the
// dial Config (API base/key/params) for a given provider, letting each
// vendor's credentials and endpoint differ.
func NewReconnectingClient(adapters map[stt.Provider]stt.RealtimeSttAdapter, router *stt.Router, cfgFor func(stt.Provider) Config, logger obslog.Logger) *ReconnectingClient {
	if logger == nil {
		logger = obslog.NoOpLogger{}
	}
	return &ReconnectingClient{adapters: adapters, router: router, cfgFor: cfgFor, logger: logger}
}

// Connect dials the first available+healthy provider for the given
// languages, retrying each provider in the chain up to the Router's
// configured NumRetries with exponential backoff before falling through to
// the next provider.
func (rc *ReconnectingClient) Connect(ctx context.Context, languages []stt.Language, available map[stt.Provider]bool) (*Client, error) {
	chain := rc.router.SelectProviderChain(languages, available)
	if len(chain) == 0 {
		return nil, errors.New("sttclient: no available provider supports the requested languages")
	}

	retry := rc.router.Retry()

	for _, provider := range chain {
		adapter, ok := rc.adapters[provider]
		if !ok {
			continue
		}
		cfg := rc.cfgFor(provider)

		client, err := rc.connectWithRetry(ctx, adapter, cfg, retry)
		if err != nil {
			rc.logger.Warn("provider_connect_exhausted", "provider", string(provider), "error", err.Error())
			continue
		}

		rc.router.RecordSuccess(provider)
		rc.active = client
		return client, nil
	}

	return nil, errors.New("sttclient: every provider in the fallback chain failed to connect")
}

func (rc *ReconnectingClient) connectWithRetry(ctx context.Context, adapter stt.RealtimeSttAdapter, cfg Config, retry stt.RetryConfig) (*Client, error) {
	op := func() (*Client, error) {
		client := New(adapter, cfg, rc.logger)
		if err := client.Connect(ctx); err != nil {
			// Every failed attempt counts against the provider's health.
			rc.router.RecordFailure(adapter.Name())
			return nil, err
		}
		return client, nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = retry.MaxDelay

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(retry.NumRetries+1)),
	)
}

// Active returns the currently connected client, or nil.
func (rc *ReconnectingClient) Active() *Client { return rc.active }

// Reconnect tears down the active client (if any) and runs Connect again,
// which starts from the head of the Router's current chain (so it can pick
// the same provider again), used when the active connection reports a
// transient error on its Errs() channel.
func (rc *ReconnectingClient) Reconnect(ctx context.Context, languages []stt.Language, available map[stt.Provider]bool) (*Client, error) {
	if rc.active != nil {
		rc.active.Close()
		rc.active = nil
	}
	return rc.Connect(ctx, languages, available)
}

// WatchAndReconnect runs until ctx is cancelled, reconnecting automatically
// whenever the active client reports an error, and forwarding every
// response onto out. Intended to run in its own goroutine from the session
// supervisor.
func (rc *ReconnectingClient) WatchAndReconnect(ctx context.Context, languages []stt.Language, available map[stt.Provider]bool, out chan<- stt.StreamResponse) error {
	for {
		client, err := rc.Connect(ctx, languages, available)
		if err != nil {
			return err
		}

		done := false
		for !done {
			select {
			case <-ctx.Done():
				client.Close()
				return ctx.Err()
			case resp, ok := <-client.Responses():
				if !ok {
					done = true
					break
				}
				select {
				case out <- resp:
				case <-ctx.Done():
					client.Close()
					return ctx.Err()
				}
			case connErr, ok := <-client.Errs():
				if !ok {
					continue
				}
				rc.logger.Warn("stt_client_transient_error", "error", connErr.Error())
				client.Close()
				done = true
			}
		}
	}
}
