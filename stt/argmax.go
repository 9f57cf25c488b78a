package stt

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// ArgmaxAdapter targets a locally-running Whisper/Argmax server exposing an
// OpenAI-compatible transcription endpoint (the setup spec.md calls the
// "local" provider and the original source calls is_local_argmax). It is
// deliberately built on the same stdlib net/http + coder/websocket wire
// shape as OpenAIAdapter rather than a native whisper.cpp binding: every
// pack occurrence of github.com/ggerganov/whisper.cpp/bindings/go resolves
// through a `replace` directive to a local filesystem checkout that does
// not exist in this workspace, so binding to it would mean fabricating a
// dependency (see DESIGN.md).
type ArgmaxAdapter struct{}

func NewArgmaxAdapter() *ArgmaxAdapter { return &ArgmaxAdapter{} }

func (a *ArgmaxAdapter) Name() Provider { return ProviderArgmax }

func (a *ArgmaxAdapter) SupportsNativeMultichannel() bool { return false }

func (a *ArgmaxAdapter) BuildURL(apiBase string, params ListenParams) (*url.URL, error) {
	base := apiBase
	if base == "" {
		base = "ws://127.0.0.1:50060/v1/audio/transcriptions"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing argmax api base: %w", err)
	}
	if len(params.Languages) == 1 {
		q := u.Query()
		q.Set("language", string(params.Languages[0]))
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (a *ArgmaxAdapter) AuthHeader(apiKey string) (string, string) {
	if apiKey == "" {
		return "", ""
	}
	return "Authorization", "Bearer " + apiKey
}

func (a *ArgmaxAdapter) EncodeFrame(pcm []byte) ([]byte, bool, error) {
	return pcm, true, nil
}

func (a *ArgmaxAdapter) FinalizeMessage() ([]byte, bool) {
	msg, _ := json.Marshal(map[string]bool{"end_of_stream": true})
	return msg, false
}

type argmaxMessage struct {
	Text    string `json:"text"`
	Final   bool   `json:"final"`
	Segment struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segment"`
}

func (a *ArgmaxAdapter) ParseMessage(raw []byte) ([]StreamResponse, error) {
	var msg argmaxMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parsing argmax message: %w", err)
	}
	if msg.Text == "" {
		return nil, nil
	}
	return []StreamResponse{{
		Words:       []Word{{Text: msg.Text, StartSec: msg.Segment.Start, EndSec: msg.Segment.End}},
		IsFinal:     msg.Final,
		SpeechFinal: msg.Final,
	}}, nil
}

// IsSupportedLanguages mirrors BuildURL: it only ever sets a single
// "language" query param and has no handling for 2+ requested codes.
func (a *ArgmaxAdapter) IsSupportedLanguages(languages []Language) bool {
	return len(languages) <= 1
}

// TranscribeFile implements BatchSttAdapter using the same
// OpenAI-compatible multipart upload shape as OpenAIAdapter, since a local
// server fronting whisper.cpp typically mirrors that API.
func (a *ArgmaxAdapter) TranscribeFile(apiBase, apiKey string, params ListenParams, wav []byte) (StreamResponse, error) {
	delegate := &OpenAIAdapter{Model: "whisper-1"}
	endpoint := apiBase
	if endpoint == "" {
		endpoint = "http://127.0.0.1:50060/v1/audio/transcriptions"
	}
	return delegate.TranscribeFile(endpoint, apiKey, params, wav)
}
