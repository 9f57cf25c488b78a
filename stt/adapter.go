package stt

import (
	"net/url"
)

// RealtimeSttAdapter is C3's central interface: one implementation per
// vendor, each freezing its own URL/auth/frame/parse schema. Grounded on
// _examples/original_source/crates/owhisper-client/src/adapter/mod.rs's
// RealtimeSttAdapter trait, translated from Rust's associated-future style
// into plain Go methods (no async trait machinery needed since Go methods
// are already callable from any goroutine).
type RealtimeSttAdapter interface {
	// Name returns the adapter's provider name, used for logging and router
	// bookkeeping.
	Name() Provider

	// SupportsNativeMultichannel reports whether the vendor can accept
	// interleaved stereo audio and return a channel_index per word, rather
	// than requiring the caller to run two independent streams.
	SupportsNativeMultichannel() bool

	// BuildURL constructs the provider's WS (or HTTP, for batch-only
	// adapters) endpoint for the given ListenParams.
	BuildURL(apiBase string, params ListenParams) (*url.URL, error)

	// AuthHeader returns the HTTP header name/value pair used to
	// authenticate (e.g. AssemblyAI's raw token header vs. Deepgram's
	// "Token <key>" convention), or ("", "") when no header is sent (Argmax
	// with an empty key). BuildURL never takes the key; Soniox additionally
	// sends it in its InitialMessage.
	AuthHeader(apiKey string) (name, value string)

	// EncodeFrame wraps a raw PCM chunk into the wire format the provider
	// expects over the WS connection (plain binary for most vendors, base64
	// JSON for a few).
	EncodeFrame(pcm []byte) ([]byte, bool, error) // payload, isBinary, error

	// FinalizeMessage returns the message the client must send to ask the
	// provider to flush pending audio and close out the stream (Deepgram's
	// {"type":"CloseStream"}, AssemblyAI's {"type":"Terminate"}, ...).
	FinalizeMessage() ([]byte, bool)

	// ParseMessage decodes one inbound WS message into zero or more
	// StreamResponses (a provider may pack multiple words' worth of updates
	// into a single frame).
	ParseMessage(raw []byte) ([]StreamResponse, error)

	// IsSupportedLanguages reports whether this adapter can serve a
	// streaming session in the given language set at all (independent of
	// health), used by the Router's selection filter.
	IsSupportedLanguages(languages []Language) bool
}

// BatchSttAdapter is implemented by adapters that also support uploading a
// complete audio file for a one-shot transcription, used by C6's
// /listen/batch route.
type BatchSttAdapter interface {
	TranscribeFile(apiBase, apiKey string, params ListenParams, wav []byte) (StreamResponse, error)
}
