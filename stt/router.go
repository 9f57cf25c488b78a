package stt

import (
	"strings"
	"sync"
	"time"

	"github.com/openscribe/transcribe-core/internal/obslog"
)

// RetryConfig bounds the fallback-chain retry loop a caller runs over the
// chain the Router returns. Ported verbatim from
// _examples/original_source/crates/transcribe-proxy/src/hyprnote_routing.rs's
// RetryConfig, including its defaults.
type RetryConfig struct {
	NumRetries   int
	MaxDelay     time.Duration
}

// RouterConfig configures a Router. Ported from HyprnoteRoutingConfig.
type RouterConfig struct {
	Priorities       []Provider
	FailureThreshold int
	FailureWindow    time.Duration
	Retry            RetryConfig
}

// DefaultRouterConfig matches HyprnoteRoutingConfig::default(): Deepgram
// first, then Soniox, AssemblyAI, Gladia, ElevenLabs, Fireworks, OpenAI,
// with a 3-failure/5-minute window and a 2-retry/5s-max-delay retry policy.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Priorities: []Provider{
			ProviderDeepgram,
			ProviderSoniox,
			ProviderAssemblyAI,
			ProviderGladia,
			ProviderElevenLabs,
			ProviderFireworks,
			ProviderOpenAI,
		},
		FailureThreshold: 3,
		FailureWindow:    5 * time.Minute,
		Retry:            RetryConfig{NumRetries: 2, MaxDelay: 5 * time.Second},
	}
}

// Router is C5: it tracks each provider's recent-failure window and
// selects a provider (or an ordered fallback chain) among the ones the
// caller reports as available, filtered by health and language support.
// Ported from HyprnoteRouter in hyprnote_routing.rs: a RwLock-guarded
// per-provider failure-timestamp slice, pruned lazily on read, with
// RecordSuccess popping one entry rather than clearing the whole window.
type Router struct {
	priorities       []Provider
	failureThreshold int
	failureWindow    time.Duration
	retry            RetryConfig
	logger           obslog.Logger

	mu        sync.RWMutex
	failures  map[Provider][]time.Time
	adapters  map[Provider]RealtimeSttAdapter
}

// NewRouter builds a Router over the given adapter set (name -> adapter),
// used both for health tracking and for the IsSupportedLanguages filter in
// SelectProvider/SelectProviderChain.
func NewRouter(cfg RouterConfig, adapters map[Provider]RealtimeSttAdapter, logger obslog.Logger) *Router {
	if logger == nil {
		logger = obslog.NoOpLogger{}
	}
	return &Router{
		priorities:       cfg.Priorities,
		failureThreshold: cfg.FailureThreshold,
		failureWindow:    cfg.FailureWindow,
		retry:            cfg.Retry,
		logger:           logger,
		failures:         make(map[Provider][]time.Time),
		adapters:         adapters,
	}
}

// SelectProvider returns the first provider, in priority order, that is
// available, healthy, and supports the requested languages. Ported from
// HyprnoteRouter::select_provider.
func (r *Router) SelectProvider(languages []Language, available map[Provider]bool) (Provider, bool) {
	for _, p := range r.priorities {
		if !available[p] {
			continue
		}
		if !r.isHealthy(p) {
			continue
		}
		if adapter, ok := r.adapters[p]; ok && !adapter.IsSupportedLanguages(languages) {
			continue
		}
		return p, true
	}
	return "", false
}

// SelectProviderChain returns every viable provider in priority order,
// allowing sequential fallback if earlier ones fail mid-session. Ported
// from HyprnoteRouter::select_provider_chain.
func (r *Router) SelectProviderChain(languages []Language, available map[Provider]bool) []Provider {
	var chain []Provider
	for _, p := range r.priorities {
		if !available[p] {
			continue
		}
		if !r.isHealthy(p) {
			continue
		}
		if adapter, ok := r.adapters[p]; ok && !adapter.IsSupportedLanguages(languages) {
			continue
		}
		chain = append(chain, p)
	}
	return chain
}

// isHealthy prunes timestamps older than the window and reports whether the
// remaining count is under the failure threshold. Ported from
// HyprnoteRouter::is_healthy, which takes the write lock even on a read
// path because it prunes in place — preserved here for fidelity.
func (r *Router) isHealthy(p Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	failures, ok := r.failures[p]
	if !ok {
		return true
	}
	cutoff := time.Now().Add(-r.failureWindow)
	failures = pruneBefore(failures, cutoff)
	r.failures[p] = failures
	return len(failures) < r.failureThreshold
}

// RecordFailure appends a failure timestamp for p and prunes the window.
// Ported from HyprnoteRouter::record_failure.
func (r *Router) RecordFailure(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	failures := append(r.failures[p], time.Now())
	cutoff := time.Now().Add(-r.failureWindow)
	failures = pruneBefore(failures, cutoff)
	r.failures[p] = failures

	r.logger.Warn("provider_failure_recorded", "provider", string(p), "failure_count_in_window", len(failures), "window", r.failureWindow)
}

// RecordSuccess pops one failure off p's window rather than clearing it
// entirely, matching HyprnoteRouter::record_success's pop-one-on-success
// behavior (a provider that failed 3 times needs 3 successes to fully
// recover, not 1).
func (r *Router) RecordSuccess(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	failures, ok := r.failures[p]
	if !ok || len(failures) == 0 {
		return
	}
	failures = failures[:len(failures)-1]
	r.failures[p] = failures

	r.logger.Debug("provider_failure_decremented_on_success", "provider", string(p), "remaining_failures", len(failures))
}

// Health returns a point-in-time snapshot of p's window, for status
// endpoints.
func (r *Router) Health(p Provider) ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	failures := r.failures[p]
	return ProviderHealth{
		Provider:         p,
		FailuresInWindow: len(failures),
		Healthy:          len(failures) < r.failureThreshold,
	}
}

// Priorities returns the router's configured priority order.
func (r *Router) Priorities() []Provider { return r.priorities }

// Retry returns the router's configured retry policy.
func (r *Router) Retry() RetryConfig { return r.retry }

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// ParseLanguages splits a comma-separated language parameter into a
// Language slice, trimming whitespace around each code. Ported from
// parse_languages in hyprnote_routing.rs.
func ParseLanguages(param string) []Language {
	if param == "" {
		return nil
	}
	var out []Language
	for _, piece := range strings.Split(param, ",") {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			out = append(out, Language(piece))
		}
	}
	return out
}
