package stt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/openscribe/transcribe-core/audio"
)

// OpenAIAdapter implements both RealtimeSttAdapter (against the realtime
// transcription WS session) and BatchSttAdapter (against
// /v1/audio/transcriptions). The batch path's multipart construction is
// carried over from the teacher's pkg/providers/stt/openai.go almost
// unchanged; the realtime path is new, following OpenAI's realtime session
// event shape (input_audio_buffer.append / ...transcription.completed).
type OpenAIAdapter struct {
	Model string
}

func NewOpenAIAdapter() *OpenAIAdapter { return &OpenAIAdapter{Model: "gpt-4o-transcribe"} }

func (o *OpenAIAdapter) Name() Provider { return ProviderOpenAI }

func (o *OpenAIAdapter) SupportsNativeMultichannel() bool { return false }

func (o *OpenAIAdapter) BuildURL(apiBase string, params ListenParams) (*url.URL, error) {
	base := apiBase
	if base == "" {
		base = "wss://api.openai.com/v1/realtime"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing openai api base: %w", err)
	}
	q := u.Query()
	model := params.Model
	if model == "" {
		model = o.Model
	}
	q.Set("intent", "transcription")
	u.RawQuery = q.Encode()
	return u, nil
}

func (o *OpenAIAdapter) AuthHeader(apiKey string) (string, string) {
	return "Authorization", "Bearer " + apiKey
}

func (o *OpenAIAdapter) EncodeFrame(pcm []byte) ([]byte, bool, error) {
	msg := map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	}
	payload, err := json.Marshal(msg)
	return payload, false, err
}

func (o *OpenAIAdapter) FinalizeMessage() ([]byte, bool) {
	msg, _ := json.Marshal(map[string]string{"type": "input_audio_buffer.commit"})
	return msg, false
}

type openAIRealtimeEvent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Delta      string `json:"delta"`
}

func (o *OpenAIAdapter) ParseMessage(raw []byte) ([]StreamResponse, error) {
	var ev openAIRealtimeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("parsing openai realtime event: %w", err)
	}

	switch ev.Type {
	case "conversation.item.input_audio_transcription.delta":
		return []StreamResponse{{
			Words:   []Word{{Text: ev.Delta}},
			IsFinal: false,
		}}, nil
	case "conversation.item.input_audio_transcription.completed":
		return []StreamResponse{{
			Words:       []Word{{Text: ev.Transcript}},
			IsFinal:     true,
			SpeechFinal: true,
			// OpenAI's realtime session never reports a confidence score;
			// a completed transcription is final regardless, so it's
			// scored 1.0 rather than avgConfidence's 0 default for
			// words with no confidence.
			Confidence: 1.0,
		}}, nil
	default:
		return nil, nil
	}
}

// IsSupportedLanguages always reports true: BuildURL never inspects
// params.Languages at all, relying entirely on the underlying model's own
// language auto-detection, so there is no request shape this adapter
// mishandles based on language count.
func (o *OpenAIAdapter) IsSupportedLanguages(languages []Language) bool {
	return true
}

// TranscribeFile implements BatchSttAdapter against
// /v1/audio/transcriptions, carrying over the teacher's multipart
// construction from pkg/providers/stt/openai.go almost unchanged.
func (o *OpenAIAdapter) TranscribeFile(apiBase, apiKey string, params ListenParams, wav []byte) (StreamResponse, error) {
	endpoint := apiBase
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/audio/transcriptions"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	model := params.Model
	if model == "" {
		model = "whisper-1"
	}
	if err := writer.WriteField("model", model); err != nil {
		return StreamResponse{}, err
	}
	if len(params.Languages) > 0 {
		if err := writer.WriteField("language", string(params.Languages[0])); err != nil {
			return StreamResponse{}, err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return StreamResponse{}, err
	}
	if _, err := part.Write(wav); err != nil {
		return StreamResponse{}, err
	}
	writer.Close()

	req, err := http.NewRequest("POST", endpoint, body)
	if err != nil {
		return StreamResponse{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return StreamResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return StreamResponse{}, fmt.Errorf("openai error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return StreamResponse{}, err
	}

	return StreamResponse{
		Words:       []Word{{Text: result.Text}},
		IsFinal:     true,
		SpeechFinal: true,
	}, nil
}

// toWAV is a thin forwarding alias used by batch adapters that share the
// capture buffer format with audio.ToWAV.
func toWAV(pcm []byte, sampleRate, channels int) []byte {
	return audio.ToWAV(pcm, sampleRate, channels)
}
