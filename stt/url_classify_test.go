package stt

import "testing"

func TestIsHyprnoteProxy(t *testing.T) {
	cases := map[string]bool{
		"https://api.hyprnote.com/stt":  true,
		"https://api.hyprnote.com":      true,
		"http://localhost:3001/stt":     true,
		"http://127.0.0.1:3001/stt":     true,
		"https://api.deepgram.com":      false,
		"http://localhost:50060/v1":     false,
	}
	for url, want := range cases {
		if got := IsHyprnoteProxy(url); got != want {
			t.Errorf("IsHyprnoteProxy(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestIsLocalArgmax(t *testing.T) {
	cases := map[string]bool{
		"http://localhost:50060/v1": true,
		"http://127.0.0.1:50060/v1": true,
		"https://api.hyprnote.com/stt": false,
		"http://localhost:3001/stt":    false,
		"https://api.deepgram.com":     false,
	}
	for url, want := range cases {
		if got := IsLocalArgmax(url); got != want {
			t.Errorf("IsLocalArgmax(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestBuildProxyWSURL(t *testing.T) {
	cases := []struct {
		input    string
		wantOK   bool
		wantURL  string
		wantQ    []QueryParam
	}{
		{input: "", wantOK: false},
		{input: "https://api.deepgram.com", wantOK: false},
		{input: "https://api.soniox.com", wantOK: false},
		{
			input:   "https://api.hyprnote.com?provider=soniox",
			wantOK:  true,
			wantURL: "wss://api.hyprnote.com/listen",
			wantQ:   []QueryParam{{Key: "provider", Value: "soniox"}},
		},
		{
			input:   "https://api.hyprnote.com/listen?provider=deepgram",
			wantOK:  true,
			wantURL: "wss://api.hyprnote.com/listen",
			wantQ:   []QueryParam{{Key: "provider", Value: "deepgram"}},
		},
		{
			input:   "http://localhost:8787?provider=soniox",
			wantOK:  true,
			wantURL: "ws://localhost:8787/listen",
			wantQ:   []QueryParam{{Key: "provider", Value: "soniox"}},
		},
	}

	for _, c := range cases {
		u, params, ok := BuildProxyWSURL(c.input)
		if ok != c.wantOK {
			t.Fatalf("input %q: got ok=%v, want %v", c.input, ok, c.wantOK)
		}
		if !ok {
			continue
		}
		if u.String() != c.wantURL {
			t.Errorf("input %q: got url %q, want %q", c.input, u.String(), c.wantURL)
		}
		if len(params) != len(c.wantQ) {
			t.Fatalf("input %q: got %d params, want %d", c.input, len(params), len(c.wantQ))
		}
		for i, p := range params {
			if p != c.wantQ[i] {
				t.Errorf("input %q: param %d = %+v, want %+v", c.input, i, p, c.wantQ[i])
			}
		}
	}
}

func TestInferAdapterKind(t *testing.T) {
	en := []Language{"en"}
	ar := []Language{"ar"}

	if got := InferAdapterKind("https://api.hyprnote.com/stt", en); got != AdapterDeepgram {
		t.Errorf("expected Deepgram for en via hyprnote proxy, got %v", got)
	}
	if got := InferAdapterKind("http://localhost:50060/v1", en); got != AdapterArgmax {
		t.Errorf("expected Argmax for local non-proxy host, got %v", got)
	}
	_ = ar
}

func TestDeepgramLanguageQuery(t *testing.T) {
	if !canUseMulti("nova-3", []Language{"en", "fr"}) {
		t.Errorf("nova-3 should support en+fr multi mode")
	}
	if canUseMulti("nova-2", []Language{"en", "fr"}) {
		t.Errorf("nova-2 should not support fr in multi mode")
	}
	if canUseMulti("nova-2", []Language{"en"}) {
		t.Errorf("single language should never use multi mode")
	}
}
