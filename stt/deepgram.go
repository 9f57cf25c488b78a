package stt

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// nova2MultiLangs and nova3MultiLangs pin the exact language codes each
// Deepgram model can run in "multi" mode, ported verbatim from
// owhisper-client/src/adapter/deepgram/language.rs's NOVA2_MULTI_LANGS and
// NOVA3_MULTI_LANGS constants.
var (
	nova2MultiLangs = []Language{"en", "es"}
	nova3MultiLangs = []Language{"en", "es", "fr", "de", "hi", "ru", "pt", "ja", "it", "nl"}
)

// deepgramSingleLangSupported is the set of languages Deepgram can run in
// single-language mode. The Rust original's own is_supported_languages
// wasn't in the retrieval pack (only its language.rs submodule, which just
// builds the query string), so this list is inferred from Deepgram's
// documented language coverage rather than ported verbatim; it deliberately
// excludes "ar", matching owhisper-client/src/adapter/mod.rs's own test
// (test_adapter_kind_from_url_and_languages expects Arabic to fall through
// to Soniox).
var deepgramSingleLangSupported = []Language{
	"en", "es", "fr", "de", "hi", "ru", "pt", "ja", "it", "nl",
	"ko", "zh", "tr", "pl", "uk", "sv", "da", "no", "fi", "el",
	"id", "ms", "vi", "th", "cs", "ro", "bg", "ca", "et", "hu",
	"lt", "lv", "sk", "sl",
}

// DeepgramAdapter implements RealtimeSttAdapter against Deepgram's /v1/listen
// WS endpoint. Rewritten from the teacher's pkg/providers/stt/deepgram.go
// (which only did one-shot HTTP batch transcription) into a streaming
// adapter; the HTTP client conventions (Authorization header style, JSON
// struct decoding) are carried over.
type DeepgramAdapter struct {
	Model string
}

// NewDeepgramAdapter returns a Deepgram adapter defaulting to nova-2, the
// same default model the teacher hardcoded in NewDeepgramSTT.
func NewDeepgramAdapter() *DeepgramAdapter {
	return &DeepgramAdapter{Model: "nova-2"}
}

func (d *DeepgramAdapter) Name() Provider { return ProviderDeepgram }

func (d *DeepgramAdapter) SupportsNativeMultichannel() bool { return true }

func (d *DeepgramAdapter) BuildURL(apiBase string, params ListenParams) (*url.URL, error) {
	base := apiBase
	if base == "" {
		base = "https://api.deepgram.com/v1/listen"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing deepgram api base: %w", err)
	}

	q := u.Query()
	model := params.Model
	if model == "" {
		model = d.Model
	}
	q.Set("model", model)
	q.Set("smart_format", "true")
	q.Set("encoding", "linear16")
	if params.Channels > 1 {
		q.Set("multichannel", "true")
		q.Set("channels", itoa(int(params.Channels)))
	}
	appendDeepgramLanguageQuery(q, model, params.Languages)
	u.RawQuery = q.Encode()
	setSchemeFromHost(u)
	return u, nil
}

// appendDeepgramLanguageQuery ports DeepgramLanguageStrategy::append_language_query
// verbatim from language.rs.
func appendDeepgramLanguageQuery(q url.Values, model string, languages []Language) {
	switch len(languages) {
	case 0:
		q.Set("detect_language", "true")
	case 1:
		q.Set("language", string(languages[0]))
	default:
		if canUseMulti(model, languages) {
			q.Set("language", "multi")
			for _, lang := range languages {
				q.Add("languages", string(lang))
			}
		} else {
			q.Set("detect_language", "true")
			for _, lang := range languages {
				q.Add("languages", string(lang))
			}
		}
	}
}

// canUseMulti ports can_use_multi verbatim: multi-language mode requires at
// least two requested languages, all of which must be in the model's
// supported multi-language list.
func canUseMulti(model string, languages []Language) bool {
	if len(languages) < 2 {
		return false
	}

	var multiLangs []Language
	switch {
	case contains(model, "nova-3"):
		multiLangs = nova3MultiLangs
	case contains(model, "nova-2"):
		multiLangs = nova2MultiLangs
	default:
		return false
	}

	for _, lang := range languages {
		if !languageIn(lang, multiLangs) {
			return false
		}
	}
	return true
}

func languageIn(lang Language, set []Language) bool {
	for _, l := range set {
		if l == lang {
			return true
		}
	}
	return false
}

func (d *DeepgramAdapter) AuthHeader(apiKey string) (string, string) {
	return "Authorization", "Token " + apiKey
}

func (d *DeepgramAdapter) EncodeFrame(pcm []byte) ([]byte, bool, error) {
	return pcm, true, nil
}

func (d *DeepgramAdapter) FinalizeMessage() ([]byte, bool) {
	msg, _ := json.Marshal(map[string]string{"type": "CloseStream"})
	return msg, false
}

type deepgramMessage struct {
	Type     string `json:"type"`
	Channel  struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
	// ChannelIndex is Deepgram's multichannel marker: [channel, total]
	// (e.g. [0, 2] for the primary of a 2-channel stream). Only present
	// when the request set multichannel=true (params.Channels > 1).
	ChannelIndex []int `json:"channel_index"`
	IsFinal      bool  `json:"is_final"`
	SpeechFinal  bool  `json:"speech_final"`
}

func (d *DeepgramAdapter) ParseMessage(raw []byte) ([]StreamResponse, error) {
	var msg deepgramMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parsing deepgram message: %w", err)
	}
	if msg.Type != "" && msg.Type != "Results" {
		return nil, nil
	}
	if len(msg.Channel.Alternatives) == 0 {
		return nil, nil
	}

	alt := msg.Channel.Alternatives[0]
	words := make([]Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, Word{
			Text:       w.Word,
			StartSec:   w.Start,
			EndSec:     w.End,
			Confidence: w.Confidence,
		})
	}

	channel := 0
	if len(msg.ChannelIndex) > 0 {
		channel = msg.ChannelIndex[0]
	}

	return []StreamResponse{{
		Words:       words,
		IsFinal:     msg.IsFinal,
		SpeechFinal: msg.SpeechFinal,
		Channel:     channel,
		Confidence:  alt.Confidence,
	}}, nil
}

func deepgramSupportsLanguages(languages []Language) bool {
	return (&DeepgramAdapter{Model: "nova-3"}).IsSupportedLanguages(languages)
}

// IsSupportedLanguages gates on the same rules BuildURL uses to build the
// query: no languages always works (detect_language), one language works
// only if Deepgram documents support for it, and two or more only work
// precisely in "multi" mode when every requested code is in the model's
// multi-language list — otherwise the request degrades to
// detect_language-with-hints, which the Router treats as unsupported for
// routing purposes (spec.md's S3 scenario: Deepgram must not win a
// ko+en request it can't actually run in multi mode).
func (d *DeepgramAdapter) IsSupportedLanguages(languages []Language) bool {
	switch len(languages) {
	case 0:
		return true
	case 1:
		return languageIn(languages[0], deepgramSingleLangSupported)
	default:
		model := d.Model
		if model == "" {
			model = "nova-2"
		}
		return canUseMulti(model, languages)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
