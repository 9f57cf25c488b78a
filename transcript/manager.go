// Package transcript implements C7, the Transcript Manager: it merges
// interim and final words per channel into an append-only final stream plus
// a replaceable partial snapshot. There is no direct teacher equivalent —
// ported straight from spec.md §4.7's append algorithm — but its shape
// (small mutex-guarded struct, no goroutines of its own) matches the
// teacher's narrowly-scoped state objects (e.g. RMSVAD's counters).
package transcript

import (
	"strings"
	"sync"

	"github.com/openscribe/transcribe-core/stt"
)

// Diff is what one Append call produces: the words newly committed to the
// append-only final stream for each channel, and the full replacement
// snapshot of each channel's still-interim partial words.
type Diff struct {
	FinalWords   map[int][]stt.Word
	PartialWords map[int][]stt.Word
}

// channelState holds one channel's partial buffer and the end time of the
// last word committed to that channel's final stream, used to prune stale
// partials per spec.md §4.7 step 2/invariant in §3's TranscriptState.
type channelState struct {
	partials     []stt.Word
	lastFinalEnd float64
}

// Manager accumulates per-channel transcript state for one session. Not
// safe for zero-value use; build with New.
type Manager struct {
	sessionStartUnixMs int64

	mu       sync.Mutex
	channels map[int]*channelState
}

// New builds a Manager. sessionStartUnixMs anchors each Word's start/end,
// which adapters report relative to stream start, onto absolute wall-clock
// seconds.
func New(sessionStartUnixMs int64) *Manager {
	return &Manager{
		sessionStartUnixMs: sessionStartUnixMs,
		channels:           make(map[int]*channelState),
	}
}

// Append normalizes resp's words and merges them into the per-channel
// state, returning the diff the caller should apply to its own view of the
// transcript. A StreamResponse with no words (e.g. a provider's
// session-metadata frame) commits no final words; if it is not final, the
// Diff still carries the channel's unchanged partial snapshot.
func (m *Manager) Append(resp stt.StreamResponse, channel int, confidence float64) Diff {
	words := normalize(resp.Words, channel)
	offset := float64(m.sessionStartUnixMs) / 1000.0
	for i := range words {
		words[i].StartSec += offset
		words[i].EndSec += offset
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cs, ok := m.channels[channel]
	if !ok {
		cs = &channelState{}
		m.channels[channel] = cs
	}

	diff := Diff{
		FinalWords:   make(map[int][]stt.Word),
		PartialWords: make(map[int][]stt.Word),
	}

	switch {
	case resp.IsFinal:
		if len(words) > 0 {
			diff.FinalWords[channel] = words
			lastNewFinalEnd := words[len(words)-1].EndSec
			if lastNewFinalEnd > cs.lastFinalEnd {
				cs.lastFinalEnd = lastNewFinalEnd
			}
		}
		cs.partials = pruneUpTo(cs.partials, cs.lastFinalEnd)

	case confidence > 0.6:
		if len(words) > 0 {
			firstStart := words[0].StartSec
			cs.partials = replaceSuffixFrom(cs.partials, firstStart, words)
		}
		diff.PartialWords[channel] = append([]stt.Word(nil), cs.partials...)

	default:
		diff.PartialWords[channel] = append([]stt.Word(nil), cs.partials...)
	}

	return diff
}

// normalize trims/drops empty words, fills in a missing speaker with the
// channel index, and contracts a leading apostrophe word onto its
// predecessor ("it" + "'s" -> "it's"), per spec.md §4.7 step 1.
func normalize(in []stt.Word, channel int) []stt.Word {
	out := make([]stt.Word, 0, len(in))
	for _, w := range in {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		w.Text = text
		if w.Speaker == 0 {
			w.Speaker = channel
		}
		w.ChannelIndex = channel

		if strings.HasPrefix(text, "'") && len(out) > 0 {
			prev := &out[len(out)-1]
			prev.Text += text
			prev.EndSec = w.EndSec
			continue
		}

		out = append(out, w)
	}
	return out
}

// pruneUpTo drops every partial whose end time is at or before cutoff, per
// spec.md §4.7 step 2 / §3's TranscriptState invariant.
func pruneUpTo(partials []stt.Word, cutoff float64) []stt.Word {
	if len(partials) == 0 {
		return partials
	}
	out := partials[:0]
	for _, w := range partials {
		if w.EndSec > cutoff {
			out = append(out, w)
		}
	}
	return out
}

// replaceSuffixFrom replaces the suffix of partials that begins at or after
// fromStart with replacement, per spec.md §4.7 step 3.
func replaceSuffixFrom(partials []stt.Word, fromStart float64, replacement []stt.Word) []stt.Word {
	kept := partials[:0:0]
	for _, w := range partials {
		if w.StartSec >= fromStart {
			break
		}
		kept = append(kept, w)
	}
	return append(kept, replacement...)
}
