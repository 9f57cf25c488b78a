// Command transcribe-agent wires config, logging, the provider router, the
// session supervisor, and the relay proxy's HTTP server into a single
// process. Shape grounded on the teacher's cmd/agent/main.go (env-driven
// provider selection, godotenv cascade, signal-driven shutdown), minus the
// LLM/TTS/voice-loop wiring that belonged to the teacher's conversational
// agent rather than this core's transcription-only scope.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/openscribe/transcribe-core/internal/config"
	"github.com/openscribe/transcribe-core/internal/obslog"
	"github.com/openscribe/transcribe-core/relay"
	"github.com/openscribe/transcribe-core/stt"
	"github.com/openscribe/transcribe-core/sttclient"
	"github.com/openscribe/transcribe-core/supervisor"
)

func main() {
	var configPath string
	var listenAddr string
	pflag.StringVar(&configPath, "config", "", "path to a YAML config file")
	pflag.StringVar(&listenAddr, "listen", "", "override the relay proxy's HTTP listen address")
	pflag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe-agent: loading config: %v\n", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.RelayListenAddr = listenAddr
	}

	logger := obslog.New(cfg.LogLevel)

	adapters := buildAdapters()
	routerCfg := stt.DefaultRouterConfig()
	routerCfg.FailureThreshold = cfg.FailureThreshold
	routerCfg.FailureWindow = cfg.FailureWindow
	if len(cfg.Priorities) > 0 {
		routerCfg.Priorities = parsePriorities(cfg.Priorities)
	}
	router := stt.NewRouter(routerCfg, adapters, logger.With("component", "router"))

	creds := func(p stt.Provider) (apiBase, apiKey string) {
		c, ok := cfg.Providers[string(p)]
		if !ok {
			return "", ""
		}
		if p == stt.ProviderArgmax {
			return c.Key, ""
		}
		return "", c.Key
	}

	cfgFor := func(p stt.Provider) sttclient.Config {
		apiBase, apiKey := creds(p)
		return sttclient.Config{
			APIBase: apiBase,
			APIKey:  apiKey,
			Params:  stt.ListenParams{Languages: []stt.Language{"en"}},
		}
	}

	sup := supervisor.New(router, adapters, cfgFor, logger.With("component", "supervisor"))

	metrics, err := relay.NewMetrics()
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err.Error())
		os.Exit(1)
	}
	relayServer := relay.NewServer(router, adapters, creds, metrics, logger.With("component", "relay"))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", relayServer)

	httpServer := &http.Server{Addr: cfg.RelayListenAddr, Handler: mux}

	go func() {
		logger.Info("relay_listening", "addr", cfg.RelayListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("relay_server_failed", "error", err.Error())
		}
	}()

	go func() {
		for ev := range sup.Events() {
			logger.Info("session_lifecycle_event", "session_id", ev.SessionID, "type", ev.Type)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting_down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}

func buildAdapters() map[stt.Provider]stt.RealtimeSttAdapter {
	return map[stt.Provider]stt.RealtimeSttAdapter{
		stt.ProviderDeepgram:   stt.NewDeepgramAdapter(),
		stt.ProviderAssemblyAI: stt.NewAssemblyAIAdapter(),
		stt.ProviderSoniox:     stt.NewSonioxAdapter(),
		stt.ProviderGladia:     stt.NewGladiaAdapter(),
		stt.ProviderElevenLabs: stt.NewElevenLabsAdapter(),
		stt.ProviderFireworks:  stt.NewFireworksAdapter(),
		stt.ProviderOpenAI:     stt.NewOpenAIAdapter(),
		stt.ProviderArgmax:     stt.NewArgmaxAdapter(),
	}
}

func parsePriorities(names []string) []stt.Provider {
	out := make([]stt.Provider, 0, len(names))
	for _, n := range names {
		out = append(out, stt.Provider(n))
	}
	return out
}
