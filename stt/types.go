// Package stt defines the Provider Adapter (C3) interface and its vendor
// implementations, plus the Router (C5) that selects among them.
package stt

import "time"

// Language is an ISO-639-1 code, optionally with a region suffix
// ("en", "en-US"), mirroring the teacher's orchestrator.Language type but
// widened from a closed enum to an open string type since spec.md requires
// arbitrary BCP-47-ish codes per vendor.
type Language string

// Provider names one of the supported STT vendors.
type Provider string

const (
	ProviderDeepgram   Provider = "deepgram"
	ProviderAssemblyAI Provider = "assemblyai"
	ProviderSoniox     Provider = "soniox"
	ProviderGladia     Provider = "gladia"
	ProviderElevenLabs Provider = "elevenlabs"
	ProviderFireworks  Provider = "fireworks"
	ProviderOpenAI     Provider = "openai"
	ProviderArgmax     Provider = "argmax"
)

// AdapterKind mirrors Provider but is kept distinct, following the original
// source's AdapterKind/Provider split, since a future provider could expose
// more than one adapter kind (e.g. a vendor with both a cloud and local
// mode).
type AdapterKind string

const (
	AdapterDeepgram   AdapterKind = AdapterKind(ProviderDeepgram)
	AdapterAssemblyAI AdapterKind = AdapterKind(ProviderAssemblyAI)
	AdapterSoniox     AdapterKind = AdapterKind(ProviderSoniox)
	AdapterGladia     AdapterKind = AdapterKind(ProviderGladia)
	AdapterElevenLabs AdapterKind = AdapterKind(ProviderElevenLabs)
	AdapterFireworks  AdapterKind = AdapterKind(ProviderFireworks)
	AdapterOpenAI     AdapterKind = AdapterKind(ProviderOpenAI)
	AdapterArgmax     AdapterKind = AdapterKind(ProviderArgmax)
)

// ListenParams carries the caller's request for a streaming session: which
// languages to expect, the model override, and the channel count.
type ListenParams struct {
	Languages []Language
	Model     string
	Channels  uint8
	// RedemptionTimeMs is carried on the request for provider-side
	// endpointing; no adapter in this package reads it.
	RedemptionTimeMs int
}

// Word is a single recognized token with timing, carried by both interim
// and final StreamResponses.
type Word struct {
	Text       string  `json:"text"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	Confidence float64 `json:"confidence"`
	Speaker    int     `json:"speaker,omitempty"`
	// ChannelIndex identifies which audio channel (0 = left/primary, 1 =
	// right/secondary) produced this word, used by the dual-channel
	// interleave path.
	ChannelIndex int `json:"channel_index"`
}

// StreamResponse is a single message parsed out of a provider's WS stream.
// IsFinal and SpeechFinal are deliberately independent per spec.md §9's
// Open Question resolution: SpeechFinal is a hint surfaced to consumers and
// never gates C7's pruning logic.
type StreamResponse struct {
	Words       []Word   `json:"words,omitempty"`
	IsFinal     bool     `json:"is_final"`
	SpeechFinal bool     `json:"speech_final"`
	Language    Language `json:"language,omitempty"`
	// Raw carries the unparsed payload for adapters that can't fully
	// normalize a message (e.g. a provider's session-metadata frames).
	Raw string `json:"raw,omitempty"`

	// Terminal marks this StreamResponse as the TerminalResponse sentinel
	// (spec.md §3): the end of a finalized session. sttclient.Client emits
	// one either when it observes the vendor close the connection after a
	// finalize request, or synthesizes one locally if the finalize timeout
	// elapses first (spec.md §7/S6), so downstream consumers converge
	// either way.
	Terminal    bool    `json:"terminal,omitempty"`
	DurationSec float64 `json:"duration_sec,omitempty"`

	// Channel identifies which transcript.Manager channel this response
	// belongs to (0 = mic/primary, 1 = speaker/secondary for a
	// MicAndSpeaker session). Adapters that support native multichannel
	// responses (Deepgram, Gladia) set this from the provider's own channel
	// index; every other adapter always reports 0, matching
	// SupportsNativeMultichannel() == false.
	Channel int `json:"channel"`

	// Confidence is this response's provider-reported confidence, the
	// input to transcript.Manager.Append's confidence-gated partial/final
	// branching (spec.md §4.7 steps 3/4). Adapters that don't surface a
	// response-level confidence average their words' confidences instead
	// (see avgConfidence).
	Confidence float64 `json:"confidence,omitempty"`
}

// avgConfidence is the fallback response-level confidence for adapters
// whose wire schema has no top-level confidence field: the mean of the
// words' own confidences, or 0 for an empty/unscored response.
func avgConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

// ProviderHealth is a point-in-time snapshot of a provider's failure window,
// used by callers that want to expose router state (e.g. a status endpoint)
// without reaching into the Router's internals.
type ProviderHealth struct {
	Provider      Provider
	FailuresInWindow int
	Healthy       bool
	WindowStart   time.Time
}
