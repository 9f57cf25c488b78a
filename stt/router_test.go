package stt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAdapters() map[Provider]RealtimeSttAdapter {
	return map[Provider]RealtimeSttAdapter{
		ProviderDeepgram:   NewDeepgramAdapter(),
		ProviderSoniox:     NewSonioxAdapter(),
		ProviderAssemblyAI: NewAssemblyAIAdapter(),
		ProviderGladia:     NewGladiaAdapter(),
		ProviderElevenLabs: NewElevenLabsAdapter(),
		ProviderFireworks:  NewFireworksAdapter(),
		ProviderOpenAI:     NewOpenAIAdapter(),
	}
}

func available(ps ...Provider) map[Provider]bool {
	m := make(map[Provider]bool, len(ps))
	for _, p := range ps {
		m[p] = true
	}
	return m
}

func TestSelectProviderByPriority(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), testAdapters(), nil)
	selected, ok := r.SelectProvider([]Language{"en"}, available(ProviderSoniox, ProviderDeepgram))
	require.True(t, ok)
	assert.Equal(t, ProviderDeepgram, selected)
}

func TestSelectProviderFallbackWhenFirstUnavailable(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), testAdapters(), nil)
	selected, ok := r.SelectProvider([]Language{"en"}, available(ProviderSoniox, ProviderAssemblyAI))
	require.True(t, ok)
	assert.Equal(t, ProviderSoniox, selected)
}

func TestSelectProviderNoneWhenNoneAvailable(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), testAdapters(), nil)
	_, ok := r.SelectProvider([]Language{"en"}, available())
	assert.False(t, ok)
}

func TestSelectProviderSkipsUnhealthy(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), testAdapters(), nil)
	for i := 0; i < 3; i++ {
		r.RecordFailure(ProviderDeepgram)
	}
	selected, ok := r.SelectProvider([]Language{"en"}, available(ProviderDeepgram, ProviderSoniox))
	require.True(t, ok)
	assert.Equal(t, ProviderSoniox, selected)
}

func TestRecordSuccessDecrementsFailureCount(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), testAdapters(), nil)
	for i := 0; i < 3; i++ {
		r.RecordFailure(ProviderDeepgram)
	}

	selected, _ := r.SelectProvider([]Language{"en"}, available(ProviderDeepgram, ProviderSoniox))
	assert.Equal(t, ProviderSoniox, selected)

	r.RecordSuccess(ProviderDeepgram)

	selected, _ = r.SelectProvider([]Language{"en"}, available(ProviderDeepgram, ProviderSoniox))
	assert.Equal(t, ProviderDeepgram, selected)
}

func TestCustomPriorities(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.Priorities = []Provider{ProviderSoniox, ProviderDeepgram}
	r := NewRouter(cfg, testAdapters(), nil)

	selected, ok := r.SelectProvider([]Language{"en"}, available(ProviderDeepgram, ProviderSoniox))
	require.True(t, ok)
	assert.Equal(t, ProviderSoniox, selected)
}

func TestSelectProviderChain(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), testAdapters(), nil)
	chain := r.SelectProviderChain([]Language{"en"}, available(ProviderDeepgram, ProviderSoniox, ProviderAssemblyAI))
	require.Len(t, chain, 3)
	assert.Equal(t, []Provider{ProviderDeepgram, ProviderSoniox, ProviderAssemblyAI}, chain)
}

func TestSelectProviderChainExcludesUnhealthy(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), testAdapters(), nil)
	for i := 0; i < 3; i++ {
		r.RecordFailure(ProviderDeepgram)
	}
	chain := r.SelectProviderChain([]Language{"en"}, available(ProviderDeepgram, ProviderSoniox))
	require.Len(t, chain, 1)
	assert.Equal(t, ProviderSoniox, chain[0])
}

// TestSelectProviderMultiLanguageGating is spec.md's S3 scenario:
// Available={Deepgram, Soniox, AssemblyAI}, languages=[ko,en] must select
// Soniox, since neither Deepgram (ko isn't in nova-2's multi list) nor
// AssemblyAI (no fixed multi-language whitelist at all) can live-support
// the combination, even though both outrank Soniox in the default
// priority list.
func TestSelectProviderMultiLanguageGating(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), testAdapters(), nil)
	selected, ok := r.SelectProvider([]Language{"ko", "en"}, available(ProviderDeepgram, ProviderSoniox, ProviderAssemblyAI))
	require.True(t, ok)
	assert.Equal(t, ProviderSoniox, selected)
}

func TestSelectProviderChainMultiLanguageGatingExcludesUnsupported(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), testAdapters(), nil)
	chain := r.SelectProviderChain([]Language{"ko", "en"}, available(ProviderDeepgram, ProviderSoniox, ProviderAssemblyAI))
	require.Len(t, chain, 1)
	assert.Equal(t, ProviderSoniox, chain[0])
}

func TestParseLanguagesVariants(t *testing.T) {
	assert.Equal(t, []Language{"en"}, ParseLanguages("en"))
	assert.Equal(t, []Language{"en", "ko", "ja"}, ParseLanguages("en,ko,ja"))
	assert.Equal(t, []Language{"en", "ko", "ja"}, ParseLanguages("en, ko , ja"))
	assert.Nil(t, ParseLanguages(""))
}
