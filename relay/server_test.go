package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/transcribe-core/stt"
)

// fakeBatchAdapter is a minimal RealtimeSttAdapter + BatchSttAdapter used to
// exercise handleListenBatch without reaching a real vendor.
type fakeBatchAdapter struct{}

func (fakeBatchAdapter) Name() stt.Provider                  { return stt.ProviderOpenAI }
func (fakeBatchAdapter) SupportsNativeMultichannel() bool     { return false }
func (fakeBatchAdapter) BuildURL(string, stt.ListenParams) (*url.URL, error) {
	return url.Parse("https://example.invalid")
}
func (fakeBatchAdapter) AuthHeader(string) (string, string)   { return "", "" }
func (fakeBatchAdapter) EncodeFrame(pcm []byte) ([]byte, bool, error) { return pcm, true, nil }
func (fakeBatchAdapter) FinalizeMessage() ([]byte, bool)      { return nil, false }
func (fakeBatchAdapter) ParseMessage([]byte) ([]stt.StreamResponse, error) { return nil, nil }
func (fakeBatchAdapter) IsSupportedLanguages([]stt.Language) bool { return true }

func (fakeBatchAdapter) TranscribeFile(apiBase, apiKey string, params stt.ListenParams, wav []byte) (stt.StreamResponse, error) {
	return stt.StreamResponse{
		Words:       []stt.Word{{Text: "ok", StartSec: 0, EndSec: 0.5}},
		IsFinal:     true,
		SpeechFinal: true,
	}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	metrics, err := NewMetrics()
	require.NoError(t, err)

	cfg := stt.DefaultRouterConfig()
	cfg.Priorities = []stt.Provider{stt.ProviderOpenAI}
	adapters := map[stt.Provider]stt.RealtimeSttAdapter{stt.ProviderOpenAI: fakeBatchAdapter{}}
	router := stt.NewRouter(cfg, adapters, nil)

	creds := func(p stt.Provider) (string, string) { return "", "test-key" }

	return NewServer(router, adapters, creds, metrics, nil)
}

func TestHandleListenBatchReturnsNormalizedResult(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/listen/batch?provider=openai", strings.NewReader("fake-wav-bytes"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"text":"ok"`)
}

func TestHandleListenBatchUnknownProvider(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/listen/batch?provider=nonexistent", strings.NewReader("x"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body relayError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "no_providers_available", body.Code)
}

func TestHandleListenBatchMissingAudioData(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/listen/batch?provider=openai", strings.NewReader(""))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body relayError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "missing_audio_data", body.Code)
}

type failingBatchAdapter struct{ fakeBatchAdapter }

func (failingBatchAdapter) TranscribeFile(apiBase, apiKey string, params stt.ListenParams, wav []byte) (stt.StreamResponse, error) {
	return stt.StreamResponse{}, errors.New("vendor rejected upload")
}

func TestHandleListenBatchAllProvidersFailedCarriesProvidersTried(t *testing.T) {
	metrics, err := NewMetrics()
	require.NoError(t, err)

	cfg := stt.DefaultRouterConfig()
	cfg.Priorities = []stt.Provider{stt.ProviderOpenAI}
	adapters := map[stt.Provider]stt.RealtimeSttAdapter{stt.ProviderOpenAI: failingBatchAdapter{}}
	router := stt.NewRouter(cfg, adapters, nil)
	creds := func(p stt.Provider) (string, string) { return "", "test-key" }
	srv := NewServer(router, adapters, creds, metrics, nil)

	req := httptest.NewRequest(http.MethodPost, "/listen/batch?provider=openai", strings.NewReader("fake-wav-bytes"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body relayError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "all_providers_failed", body.Code)
	assert.Equal(t, []string{"openai"}, body.ProvidersTried)
}
