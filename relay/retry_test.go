package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/transcribe-core/stt"
)

func newTestRetrier(t *testing.T) *chainRetrier {
	t.Helper()
	metrics, err := NewMetrics()
	require.NoError(t, err)

	cfg := stt.DefaultRouterConfig()
	cfg.Priorities = []stt.Provider{stt.ProviderDeepgram, stt.ProviderSoniox}
	router := stt.NewRouter(cfg, map[stt.Provider]stt.RealtimeSttAdapter{
		stt.ProviderDeepgram: stt.NewDeepgramAdapter(),
		stt.ProviderSoniox:   stt.NewSonioxAdapter(),
	}, nil)

	return newChainRetrier(router, metrics, nil)
}

func TestChainRetrierSucceedsOnFirstProvider(t *testing.T) {
	cr := newTestRetrier(t)
	available := map[stt.Provider]bool{stt.ProviderDeepgram: true, stt.ProviderSoniox: true}

	provider, err := cr.attempt(context.Background(), []stt.Language{"en"}, available, func(ctx context.Context, p stt.Provider) error {
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, stt.ProviderDeepgram, provider)
}

func TestChainRetrierFallsThroughOnExhaustedRetries(t *testing.T) {
	cr := newTestRetrier(t)
	available := map[stt.Provider]bool{stt.ProviderDeepgram: true, stt.ProviderSoniox: true}

	provider, err := cr.attempt(context.Background(), []stt.Language{"en"}, available, func(ctx context.Context, p stt.Provider) error {
		if p == stt.ProviderDeepgram {
			return errors.New("deepgram unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, stt.ProviderSoniox, provider)
}

func TestChainRetrierFailsWhenAllProvidersFail(t *testing.T) {
	cr := newTestRetrier(t)
	available := map[stt.Provider]bool{stt.ProviderDeepgram: true, stt.ProviderSoniox: true}

	_, err := cr.attempt(context.Background(), []stt.Language{"en"}, available, func(ctx context.Context, p stt.Provider) error {
		return errors.New("boom")
	})

	assert.Error(t, err)
}

func TestChainRetrierNoAvailableProviders(t *testing.T) {
	cr := newTestRetrier(t)

	_, err := cr.attempt(context.Background(), []stt.Language{"en"}, map[stt.Provider]bool{}, func(ctx context.Context, p stt.Provider) error {
		return nil
	})

	assert.Error(t, err)
}
