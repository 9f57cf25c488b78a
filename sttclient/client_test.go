package sttclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/transcribe-core/stt"
)

// fakeAdapter is a minimal stt.RealtimeSttAdapter stand-in for exercising
// Client's state machine without dialing a real provider.
type fakeAdapter struct {
	name       stt.Provider
	buildErr   error
	finalizeOn []byte
}

func (f *fakeAdapter) Name() stt.Provider                       { return f.name }
func (f *fakeAdapter) SupportsNativeMultichannel() bool          { return false }
func (f *fakeAdapter) IsSupportedLanguages([]stt.Language) bool  { return true }

func (f *fakeAdapter) BuildURL(apiBase string, params stt.ListenParams) (*url.URL, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	if apiBase == "" {
		return url.Parse("ws://127.0.0.1:0/v1/listen")
	}
	return url.Parse(apiBase)
}

func (f *fakeAdapter) AuthHeader(apiKey string) (string, string) {
	if apiKey == "" {
		return "", ""
	}
	return "Authorization", "Token " + apiKey
}

func (f *fakeAdapter) EncodeFrame(pcm []byte) ([]byte, bool, error) {
	return pcm, true, nil
}

func (f *fakeAdapter) FinalizeMessage() ([]byte, bool) {
	if f.finalizeOn != nil {
		return f.finalizeOn, false
	}
	return []byte(`{"type":"CloseStream"}`), false
}

func (f *fakeAdapter) ParseMessage(raw []byte) ([]stt.StreamResponse, error) {
	return nil, nil
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateDraining:     "draining",
		StateClosing:      "closing",
		StateClosed:       "closed",
		State(99):         "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestNewDefaultsAudioBufferSize(t *testing.T) {
	c := New(&fakeAdapter{name: stt.ProviderDeepgram}, Config{}, nil)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 256, cap(c.audioIn))
}

func TestNewRespectsExplicitAudioBufferSize(t *testing.T) {
	c := New(&fakeAdapter{name: stt.ProviderDeepgram}, Config{AudioBufferSize: 8}, nil)
	assert.Equal(t, 8, cap(c.audioIn))
}

func TestWriteBeforeConnectReturnsError(t *testing.T) {
	c := New(&fakeAdapter{name: stt.ProviderDeepgram}, Config{}, nil)
	err := c.Write([]byte("pcm"))
	assert.Error(t, err)
}

func TestConnectPropagatesBuildURLError(t *testing.T) {
	c := New(&fakeAdapter{name: stt.ProviderDeepgram, buildErr: errors.New("bad params")}, Config{}, nil)
	err := c.Connect(nil)
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestFinalizeWithNoConnectionIsANoop(t *testing.T) {
	c := New(&fakeAdapter{name: stt.ProviderDeepgram}, Config{}, nil)
	err := c.Finalize(time.Second)
	assert.NoError(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(&fakeAdapter{name: stt.ProviderDeepgram}, Config{}, nil)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())
}

// wsURL turns an httptest server's http:// base URL into a ws:// one.
func wsURL(t *testing.T, s *httptest.Server) string {
	t.Helper()
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// TestFinalizeObservesVendorCloseTransitionsToClosed exercises the
// Draining --TerminalResponse received--> Closed edge of spec.md §4.4: once
// the vendor closes the connection after our finalize message, Finalize
// returns promptly (well under its timeout) and a Terminal StreamResponse
// is delivered on Responses().
func TestFinalizeObservesVendorCloseTransitionsToClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		_, _, _ = conn.Read(r.Context())
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	c := New(&fakeAdapter{name: stt.ProviderDeepgram}, Config{APIBase: wsURL(t, srv)}, nil)
	require.NoError(t, c.Connect(context.Background()))

	start := time.Now()
	require.NoError(t, c.Finalize(5*time.Second))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateClosed, c.State())

	select {
	case resp := <-c.Responses():
		assert.True(t, resp.Terminal)
	default:
		t.Fatal("expected a terminal StreamResponse on Responses()")
	}

	require.NoError(t, c.Close())
}

// TestFinalizeTimeoutEmitsSyntheticTerminal exercises scenario S6: the
// vendor never responds to the finalize message, so Finalize's timeout
// fires and a synthetic Terminal StreamResponse is emitted locally.
func TestFinalizeTimeoutEmitsSyntheticTerminal(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		_, _, _ = conn.Read(r.Context())
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	c := New(&fakeAdapter{name: stt.ProviderDeepgram}, Config{APIBase: wsURL(t, srv)}, nil)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Finalize(50*time.Millisecond))
	assert.Equal(t, StateClosed, c.State())

	select {
	case resp := <-c.Responses():
		assert.True(t, resp.Terminal)
	default:
		t.Fatal("expected a synthetic terminal StreamResponse on Responses()")
	}

	require.NoError(t, c.Close())
}

// TestFinalizeIsIdempotent calls Finalize twice and expects the second call
// to return the first call's result without re-sending anything.
func TestFinalizeIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		_, _, _ = conn.Read(r.Context())
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	c := New(&fakeAdapter{name: stt.ProviderDeepgram}, Config{APIBase: wsURL(t, srv)}, nil)
	require.NoError(t, c.Connect(context.Background()))

	err1 := c.Finalize(5 * time.Second)
	err2 := c.Finalize(5 * time.Second)
	assert.NoError(t, err1)
	assert.Equal(t, err1, err2)

	require.NoError(t, c.Close())
}
