// Package relay implements C6, the Relay Proxy: an HTTP server exposing
// /listen (WebSocket, pass-through or Hyprnote-routed) and /listen/batch
// (HTTP POST) so out-of-process callers can reach any wired STT provider
// without embedding its credentials. Grounded on the teacher's
// pkg/providers/tts/lokutor.go coder/websocket dial pattern, run in
// reverse (server-side accept instead of client-side dial), and routed
// with github.com/go-chi/chi/v5 per the rest of the example pack's HTTP
// service convention.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openscribe/transcribe-core/internal/obslog"
	"github.com/openscribe/transcribe-core/stt"
)

// relayError is the structured body spec.md §6 requires for every
// /listen/batch error response: a stable machine-readable Code plus a
// human Message, and (for the 502 all-providers-failed case) the list of
// providers the request chain actually attempted. Per-provider failure
// detail never leaks beyond Message; raw vendor payloads are never
// embedded here (spec.md §7's propagation policy).
type relayError struct {
	Code           string   `json:"code"`
	Message        string   `json:"message"`
	ProvidersTried []string `json:"providers_tried,omitempty"`
}

func writeRelayError(w http.ResponseWriter, status int, code, message string, providersTried ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(relayError{Code: code, Message: message, ProvidersTried: providersTried})
}

// CredentialSource resolves the API key to use for a given provider, so the
// relay need not know whether keys come from env vars, a secrets manager,
// or a config file.
type CredentialSource func(provider stt.Provider) (apiBase, apiKey string)

// Server is C6's HTTP entrypoint.
type Server struct {
	router   *stt.Router
	adapters map[stt.Provider]stt.RealtimeSttAdapter
	creds    CredentialSource
	metrics  *Metrics
	retrier  *chainRetrier
	logger   obslog.Logger

	mux *chi.Mux
}

// NewServer builds the relay's HTTP handler tree.
func NewServer(router *stt.Router, adapters map[stt.Provider]stt.RealtimeSttAdapter, creds CredentialSource, metrics *Metrics, logger obslog.Logger) *Server {
	if logger == nil {
		logger = obslog.NoOpLogger{}
	}
	s := &Server{
		router:   router,
		adapters: adapters,
		creds:    creds,
		metrics:  metrics,
		retrier:  newChainRetrier(router, metrics, logger),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Get("/listen", s.handleListen)
	r.Post("/listen/batch", s.handleListenBatch)
	s.mux = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// handleListen upgrades to WebSocket and runs either pass-through mode
// (provider=<name>) or Hyprnote-routing mode (provider=hyprnote), per
// spec.md §4.6.
func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordRequest(r.Context(), "listen")

	q := r.URL.Query()
	requested := stt.Provider(q.Get("provider"))
	languages := stt.ParseLanguages(q.Get("languages"))

	clientConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("relay_ws_accept_failed", "error", err.Error())
		return
	}
	defer clientConn.Close(websocket.StatusInternalError, "")

	ctx := r.Context()

	if requested != "" && requested != "hyprnote" {
		s.runPassthrough(ctx, clientConn, requested, languages)
		return
	}
	s.runHyprnoteRouted(ctx, clientConn, languages)
}

// runPassthrough dials exactly the named provider and forwards audio/
// responses unchanged, per spec.md §4.6's pass-through mode.
func (s *Server) runPassthrough(ctx context.Context, clientConn *websocket.Conn, provider stt.Provider, languages []stt.Language) {
	adapter, ok := s.adapters[provider]
	if !ok {
		clientConn.Close(websocket.StatusPolicyViolation, fmt.Sprintf("unknown provider %q", provider))
		return
	}

	apiBase, apiKey := s.creds(provider)
	upstream, err := s.dialUpstream(ctx, adapter, apiBase, apiKey, languages)
	if err != nil {
		s.router.RecordFailure(provider)
		s.metrics.RecordProviderFailure(ctx, string(provider))
		clientConn.Close(websocket.StatusInternalError, "upstream dial failed")
		return
	}
	defer upstream.Close(websocket.StatusNormalClosure, "")

	s.router.RecordSuccess(provider)
	s.pump(ctx, clientConn, upstream, adapter)
}

// runHyprnoteRouted invokes the Router's fallback chain, retrying each
// provider before falling through, per spec.md §4.6's "Hyprnote routing"
// mode.
func (s *Server) runHyprnoteRouted(ctx context.Context, clientConn *websocket.Conn, languages []stt.Language) {
	available := make(map[stt.Provider]bool, len(s.adapters))
	for p := range s.adapters {
		available[p] = true
	}

	var upstream *websocket.Conn
	var adapter stt.RealtimeSttAdapter

	_, err := s.retrier.attempt(ctx, languages, available, func(ctx context.Context, provider stt.Provider) error {
		a, ok := s.adapters[provider]
		if !ok {
			return fmt.Errorf("no adapter registered for provider %q", provider)
		}
		apiBase, apiKey := s.creds(provider)
		conn, err := s.dialUpstream(ctx, a, apiBase, apiKey, languages)
		if err != nil {
			return err
		}
		upstream = conn
		adapter = a
		return nil
	})

	if err != nil {
		s.logger.Error("relay_hyprnote_routing_exhausted", "error", err.Error())
		clientConn.Close(websocket.StatusInternalError, "all providers exhausted")
		return
	}
	defer upstream.Close(websocket.StatusNormalClosure, "")

	s.pump(ctx, clientConn, upstream, adapter)
}

func (s *Server) dialUpstream(ctx context.Context, adapter stt.RealtimeSttAdapter, apiBase, apiKey string, languages []stt.Language) (*websocket.Conn, error) {
	u, err := adapter.BuildURL(apiBase, stt.ListenParams{Languages: languages})
	if err != nil {
		return nil, fmt.Errorf("building %s url: %w", adapter.Name(), err)
	}

	opts := &websocket.DialOptions{}
	if name, value := adapter.AuthHeader(apiKey); name != "" {
		opts.HTTPHeader = map[string][]string{name: {value}}
	}

	conn, _, err := websocket.Dial(ctx, u.String(), opts)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", adapter.Name(), err)
	}
	return conn, nil
}

// pump shuttles audio from the client to the upstream provider and parsed
// responses back, filtering out vendor control messages the adapter owns
// per spec.md §4.6's "control-message filtering" requirement (ParseMessage
// already collapses those to an empty slice, so nothing further is needed
// here beyond not forwarding raw frames that produced zero responses).
func (s *Server) pump(ctx context.Context, client, upstream *websocket.Conn, adapter stt.RealtimeSttAdapter) {
	errc := make(chan error, 2)

	go func() {
		for {
			_, payload, err := client.Read(ctx)
			if err != nil {
				errc <- err
				return
			}
			frame, isBinary, err := adapter.EncodeFrame(payload)
			if err != nil {
				errc <- err
				return
			}
			mt := websocket.MessageText
			if isBinary {
				mt = websocket.MessageBinary
			}
			if err := upstream.Write(ctx, mt, frame); err != nil {
				errc <- err
				return
			}
		}
	}()

	go func() {
		for {
			_, payload, err := upstream.Read(ctx)
			if err != nil {
				errc <- err
				return
			}
			responses, err := adapter.ParseMessage(payload)
			if err != nil {
				s.logger.Warn("relay_parse_error", "error", err.Error())
				continue
			}
			for _, resp := range responses {
				if err := wsjson.Write(ctx, client, resp); err != nil {
					errc <- err
					return
				}
			}
		}
	}()

	<-errc
	client.Close(websocket.StatusNormalClosure, "")
}

// handleListenBatch implements spec.md §4.6's batch mode: the audio body
// is written to a temp file, dispatched to the batch adapter of the single
// provider named by the "provider" query parameter, run synchronously (no
// polling), and the temp file is removed. No fallback chain is tried: if
// that provider fails, the request fails.
func (s *Server) handleListenBatch(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordRequest(r.Context(), "listen_batch")

	q := r.URL.Query()
	provider := stt.Provider(q.Get("provider"))
	languages := stt.ParseLanguages(q.Get("languages"))

	adapter, ok := s.adapters[provider]
	if !ok {
		writeRelayError(w, http.StatusBadRequest, "no_providers_available", fmt.Sprintf("unknown provider %q", provider))
		return
	}
	batchAdapter, ok := adapter.(stt.BatchSttAdapter)
	if !ok {
		writeRelayError(w, http.StatusBadRequest, "no_providers_available", fmt.Sprintf("provider %q does not support batch transcription", provider))
		return
	}

	tmp, err := os.CreateTemp("", "relay-batch-*.wav")
	if err != nil {
		writeRelayError(w, http.StatusBadGateway, "all_providers_failed", "failed to buffer upload", string(provider))
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r.Body); err != nil {
		tmp.Close()
		writeRelayError(w, http.StatusBadRequest, "missing_audio_data", "failed to read upload")
		return
	}
	tmp.Close()

	wav, err := os.ReadFile(tmpPath)
	if err != nil {
		writeRelayError(w, http.StatusBadGateway, "all_providers_failed", "failed to read buffered upload", string(provider))
		return
	}
	if len(wav) == 0 {
		writeRelayError(w, http.StatusBadRequest, "missing_audio_data", "request body carried no audio")
		return
	}

	apiBase, apiKey := s.creds(provider)
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := batchAdapter.TranscribeFile(apiBase, apiKey, stt.ListenParams{Languages: languages}, wav)
	if err != nil {
		s.router.RecordFailure(provider)
		s.metrics.RecordProviderFailure(ctx, string(provider))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			writeRelayError(w, http.StatusGatewayTimeout, "gateway_timeout", "batch transcription timed out", string(provider))
			return
		}
		s.logger.Warn("relay_batch_provider_failed", "provider", string(provider), "error", err.Error())
		writeRelayError(w, http.StatusBadGateway, "all_providers_failed", "batch transcription failed", string(provider))
		return
	}
	s.router.RecordSuccess(provider)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Error("relay_batch_encode_failed", "error", err.Error())
	}
}
