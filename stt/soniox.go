package stt

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// SonioxAdapter implements RealtimeSttAdapter against Soniox's realtime WS
// API. No equivalent exists in the teacher repo; the wire schema (Token
// with "<fin>"/"<end>" control-text sentinels, untagged speaker id, a
// single StreamMessage envelope) is ported from
// _examples/original_source/crates/soniox/src/lib.rs's Token/StreamMessage
// types and is_retryable_status helper.
type SonioxAdapter struct{}

func NewSonioxAdapter() *SonioxAdapter { return &SonioxAdapter{} }

func (s *SonioxAdapter) Name() Provider { return ProviderSoniox }

func (s *SonioxAdapter) SupportsNativeMultichannel() bool { return false }

func (s *SonioxAdapter) BuildURL(apiBase string, params ListenParams) (*url.URL, error) {
	base := apiBase
	if base == "" {
		base = "wss://stt-rt.soniox.com/transcribe-websocket"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing soniox api base: %w", err)
	}
	return u, nil
}

func (s *SonioxAdapter) AuthHeader(apiKey string) (string, string) {
	return "Authorization", "Bearer " + apiKey
}

// InitialMessage returns the session-config JSON Soniox expects as its
// first text frame (the Go equivalent of initial_message in the original
// adapter trait); callers should send this before streaming audio.
func (s *SonioxAdapter) InitialMessage(apiKey string, params ListenParams) ([]byte, error) {
	cfg := map[string]interface{}{
		"api_key":         apiKey,
		"model":           "stt-rt-preview",
		"audio_format":    "pcm_s16le",
		"sample_rate":     16000,
		"num_channels":    1,
		"enable_endpoint": true,
	}
	if len(params.Languages) > 0 {
		langs := make([]string, len(params.Languages))
		for i, l := range params.Languages {
			langs[i] = string(l)
		}
		cfg["language_hints"] = langs
	}
	return json.Marshal(cfg)
}

func (s *SonioxAdapter) EncodeFrame(pcm []byte) ([]byte, bool, error) {
	return pcm, true, nil
}

func (s *SonioxAdapter) FinalizeMessage() ([]byte, bool) {
	return []byte(""), true
}

type sonioxToken struct {
	Text       string   `json:"text"`
	StartMs    *int64   `json:"start_ms"`
	EndMs      *int64   `json:"end_ms"`
	Confidence *float64 `json:"confidence"`
	IsFinal    *bool    `json:"is_final"`
}

func (t sonioxToken) isFin() bool  { return t.Text == "<fin>" && t.IsFinal != nil && *t.IsFinal }
func (t sonioxToken) isEnd() bool  { return t.Text == "<end>" }
func (t sonioxToken) isControl() bool { return t.isFin() || t.isEnd() }

type sonioxStreamMessage struct {
	Tokens       []sonioxToken `json:"tokens"`
	Finished     *bool         `json:"finished"`
	ErrorCode    *int          `json:"error_code"`
	ErrorMessage *string       `json:"error_message"`
}

func (s *SonioxAdapter) ParseMessage(raw []byte) ([]StreamResponse, error) {
	var msg sonioxStreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parsing soniox message: %w", err)
	}

	if msg.ErrorCode != nil {
		errMsg := ""
		if msg.ErrorMessage != nil {
			errMsg = *msg.ErrorMessage
		}
		return nil, fmt.Errorf("soniox stream error %d: %s", *msg.ErrorCode, errMsg)
	}

	var words []Word
	sawFin := false
	for _, tok := range msg.Tokens {
		if tok.isControl() {
			if tok.isFin() {
				sawFin = true
			}
			continue
		}
		w := Word{Text: tok.Text}
		if tok.StartMs != nil {
			w.StartSec = float64(*tok.StartMs) / 1000.0
		}
		if tok.EndMs != nil {
			w.EndSec = float64(*tok.EndMs) / 1000.0
		}
		if tok.Confidence != nil {
			w.Confidence = *tok.Confidence
		}
		words = append(words, w)
	}

	if len(words) == 0 && !sawFin {
		return nil, nil
	}

	isFinal := sawFin || (msg.Finished != nil && *msg.Finished)
	return []StreamResponse{{
		Words:       words,
		IsFinal:     isFinal,
		SpeechFinal: isFinal,
		Confidence:  avgConfidence(words),
	}}, nil
}

// IsSupportedLanguages always reports true: unlike Deepgram/AssemblyAI,
// Soniox takes an arbitrary "language_hints" list (see InitialMessage) with
// no fixed multi-language whitelist to gate against, so any language set
// is genuinely dispatchable — this is why spec.md's S3 scenario picks
// Soniox as the ko+en survivor.
func (s *SonioxAdapter) IsSupportedLanguages(languages []Language) bool {
	return true
}

// IsRetryableStatus ports is_retryable_status verbatim: Soniox treats 429
// and any 5xx as retryable.
func IsRetryableStatus(status int) bool {
	return status == 429 || status >= 500
}
