package stt

import "net/url"

// IsLocalHost reports whether host is a loopback address, ported verbatim
// from owhisper-client/src/adapter/mod.rs's is_local_host.
func IsLocalHost(host string) bool {
	switch host {
	case "127.0.0.1", "localhost", "0.0.0.0", "::1":
		return true
	default:
		return false
	}
}

func isHyprnoteCloud(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return contains(u.Hostname(), "hyprnote.com")
}

func isHyprnoteLocalProxy(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return IsLocalHost(u.Hostname()) && contains(u.Path, "/stt")
}

// IsHyprnoteProxy reports whether baseURL points at the hosted relay or a
// local relay proxy instance, ported from is_hyprnote_proxy.
func IsHyprnoteProxy(baseURL string) bool {
	return isHyprnoteCloud(baseURL) || isHyprnoteLocalProxy(baseURL)
}

// IsLocalArgmax reports whether baseURL is a bare local endpoint that is not
// the relay proxy, i.e. a directly-addressed local Whisper/Argmax server,
// ported from is_local_argmax.
func IsLocalArgmax(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return IsLocalHost(u.Hostname()) && !isHyprnoteLocalProxy(baseURL)
}

// BuildProxyWSURL rewrites an api_base into the relay proxy's /listen
// endpoint, preserving any existing query parameters, ported from
// build_proxy_ws_url. Returns ok=false when baseURL isn't a relay host at
// all.
func BuildProxyWSURL(apiBase string) (*url.URL, []QueryParam, bool) {
	const proxyPath = "/listen"

	if apiBase == "" {
		return nil, nil, false
	}

	parsed, err := url.Parse(apiBase)
	if err != nil {
		return nil, nil, false
	}
	host := parsed.Hostname()
	if host == "" {
		return nil, nil, false
	}

	if !contains(host, "hyprnote.com") && !IsLocalHost(host) {
		return nil, nil, false
	}

	existing := extractQueryParams(parsed)

	out := *parsed
	out.RawQuery = ""
	out.Path = proxyPath
	setSchemeFromHost(&out)

	return &out, existing, true
}

// QueryParam is an ordered key/value query pair.
type QueryParam struct {
	Key   string
	Value string
}

func extractQueryParams(u *url.URL) []QueryParam {
	var out []QueryParam
	for k, vs := range u.Query() {
		for _, v := range vs {
			out = append(out, QueryParam{Key: k, Value: v})
		}
	}
	return out
}

func setSchemeFromHost(u *url.URL) {
	host := u.Hostname()
	if IsLocalHost(host) {
		u.Scheme = "ws"
	} else {
		u.Scheme = "wss"
	}
}

// AppendProviderParam appends a "provider" query parameter to baseURL,
// ported from append_provider_param.
func AppendProviderParam(baseURL, provider string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	q := u.Query()
	q.Add("provider", provider)
	u.RawQuery = q.Encode()
	return u.String()
}

// InferAdapterKind decides which adapter to use purely from the endpoint
// shape and requested languages, without the caller naming a provider
// explicitly, ported from AdapterKind::from_url_and_languages. Supplements
// the Router's language+health selection with an endpoint-based path used
// when a single fixed api_base is configured.
func InferAdapterKind(apiBase string, languages []Language) AdapterKind {
	if IsHyprnoteProxy(apiBase) {
		if deepgramSupportsLanguages(languages) {
			return AdapterDeepgram
		}
		return AdapterSoniox
	}

	if IsLocalArgmax(apiBase) {
		return AdapterArgmax
	}

	if kind, ok := adapterKindFromHost(apiBase); ok {
		return kind
	}
	return AdapterDeepgram
}

func adapterKindFromHost(apiBase string) (AdapterKind, bool) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	switch {
	case contains(host, "deepgram.com"):
		return AdapterDeepgram, true
	case contains(host, "assemblyai.com"):
		return AdapterAssemblyAI, true
	case contains(host, "soniox.com"):
		return AdapterSoniox, true
	case contains(host, "fireworks.ai"):
		return AdapterFireworks, true
	case contains(host, "openai.com"):
		return AdapterOpenAI, true
	case contains(host, "gladia.io"):
		return AdapterGladia, true
	case contains(host, "elevenlabs.io"):
		return AdapterElevenLabs, true
	default:
		return "", false
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}
