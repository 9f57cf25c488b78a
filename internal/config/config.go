// Package config loads transcribe-core's runtime configuration from a
// cascade of sources, lowest priority first: a YAML file, a .env file, then
// the process environment. This mirrors the teacher's cmd/agent/main.go
// godotenv+os.Getenv cascade, extended with a YAML layer for static
// provider-priority and timeout overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProviderCreds holds the API key for one vendor (for argmax, Key holds the
// local server's API base instead). An empty Key does not remove the
// provider from routing: the supervisor and relay still mark it available,
// and it is dialed with an empty key.
type ProviderCreds struct {
	Key string `yaml:"key"`
}

// Config is the fully-resolved runtime configuration for the agent binary
// and the relay proxy.
type Config struct {
	// SampleRate and Channels describe the audio capture format, matching
	// the teacher's Config.SampleRate/Channels fields.
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`

	// Providers maps a provider name ("deepgram", "assemblyai", ...) to its
	// credentials.
	Providers map[string]ProviderCreds `yaml:"providers"`

	// Priorities is the router's provider preference order. Empty means use
	// the built-in default (Deepgram, Soniox, AssemblyAI, Gladia, ElevenLabs,
	// Fireworks, OpenAI).
	Priorities []string `yaml:"priorities"`

	// FailureThreshold and FailureWindow gate the router's health tracking,
	// grounded on hyprnote_routing.rs's HyprnoteRoutingConfig defaults.
	FailureThreshold int           `yaml:"failure_threshold"`
	FailureWindow    time.Duration `yaml:"failure_window"`

	// RelayListenAddr is the address the relay proxy's HTTP server binds to.
	RelayListenAddr string `yaml:"relay_listen_addr"`

	// LogLevel controls the obslog verbosity ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level"`
}

// Default returns the baseline configuration before any file or environment
// overrides are applied.
func Default() Config {
	return Config{
		SampleRate:       16000,
		Channels:         1,
		Providers:        map[string]ProviderCreds{},
		FailureThreshold: 3,
		FailureWindow:    5 * time.Minute,
		RelayListenAddr:  ":8080",
		LogLevel:         "info",
	}
}

// Load resolves configuration from yamlPath (if non-empty and present), a
// .env file in the working directory, and the process environment, in that
// priority order (environment wins).
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config file %s: %w", yamlPath, err)
		}
	}

	// Note: No .env file found is not an error, matching cmd/agent/main.go's
	// behavior of falling back to system environment variables.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAY_LISTEN_ADDR"); v != "" {
		cfg.RelayListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SAMPLE_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SampleRate = n
		}
	}

	for _, name := range []string{
		"deepgram", "assemblyai", "soniox", "gladia",
		"elevenlabs", "fireworks", "openai", "argmax",
	} {
		envVar := envKeyFor(name)
		if v := os.Getenv(envVar); v != "" {
			if cfg.Providers == nil {
				cfg.Providers = map[string]ProviderCreds{}
			}
			cfg.Providers[name] = ProviderCreds{Key: v}
		}
	}
}

func envKeyFor(provider string) string {
	switch provider {
	case "deepgram":
		return "DEEPGRAM_API_KEY"
	case "assemblyai":
		return "ASSEMBLYAI_API_KEY"
	case "soniox":
		return "SONIOX_API_KEY"
	case "gladia":
		return "GLADIA_API_KEY"
	case "elevenlabs":
		return "ELEVENLABS_API_KEY"
	case "fireworks":
		return "FIREWORKS_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "argmax":
		return "ARGMAX_API_BASE"
	default:
		return ""
	}
}
