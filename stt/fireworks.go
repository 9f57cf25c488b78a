package stt

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// FireworksAdapter implements RealtimeSttAdapter against Fireworks AI's
// streaming Whisper-compatible endpoint. No original_source file for
// Fireworks was available in the pack; built from spec.md §4.3's vendor
// table following the shared adapter wire-style.
type FireworksAdapter struct{}

func NewFireworksAdapter() *FireworksAdapter { return &FireworksAdapter{} }

func (f *FireworksAdapter) Name() Provider { return ProviderFireworks }

func (f *FireworksAdapter) SupportsNativeMultichannel() bool { return false }

func (f *FireworksAdapter) BuildURL(apiBase string, params ListenParams) (*url.URL, error) {
	base := apiBase
	if base == "" {
		base = "wss://audio-streaming.us-virginia-1.direct.fireworks.ai/v1/audio/transcriptions/streaming"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing fireworks api base: %w", err)
	}
	q := u.Query()
	q.Set("model", "whisper-v3")
	if len(params.Languages) == 1 {
		q.Set("language", string(params.Languages[0]))
	}
	u.RawQuery = q.Encode()
	return u, nil
}

func (f *FireworksAdapter) AuthHeader(apiKey string) (string, string) {
	return "Authorization", "Bearer " + apiKey
}

func (f *FireworksAdapter) EncodeFrame(pcm []byte) ([]byte, bool, error) {
	return pcm, true, nil
}

func (f *FireworksAdapter) FinalizeMessage() ([]byte, bool) {
	msg, _ := json.Marshal(map[string]string{"checkpoint_id": "final"})
	return msg, false
}

type fireworksMessage struct {
	Text       string  `json:"text"`
	Segments   []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
	IsFinal bool `json:"checkpoint"`
}

func (f *FireworksAdapter) ParseMessage(raw []byte) ([]StreamResponse, error) {
	var msg fireworksMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parsing fireworks message: %w", err)
	}
	if msg.Text == "" && len(msg.Segments) == 0 {
		return nil, nil
	}

	words := make([]Word, 0, len(msg.Segments))
	for _, s := range msg.Segments {
		words = append(words, Word{Text: s.Text, StartSec: s.Start, EndSec: s.End})
	}

	return []StreamResponse{{
		Words:       words,
		IsFinal:     msg.IsFinal,
		SpeechFinal: msg.IsFinal,
		Confidence:  avgConfidence(words),
	}}, nil
}

// IsSupportedLanguages mirrors BuildURL: it only ever sets a single
// "language" query param and has no handling for 2+ requested codes.
func (f *FireworksAdapter) IsSupportedLanguages(languages []Language) bool {
	return len(languages) <= 1
}
