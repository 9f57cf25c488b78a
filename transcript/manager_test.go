package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscribe/transcribe-core/stt"
)

func TestAppendFinalEmitsAppendOnlyDiff(t *testing.T) {
	m := New(0)

	diff := m.Append(stt.StreamResponse{
		IsFinal: true,
		Words: []stt.Word{
			{Text: "hello", StartSec: 0.0, EndSec: 0.4},
			{Text: "world", StartSec: 0.4, EndSec: 0.8},
		},
	}, 0, 1.0)

	require.Len(t, diff.FinalWords[0], 2)
	assert.Equal(t, "hello", diff.FinalWords[0][0].Text)
	assert.Equal(t, "world", diff.FinalWords[0][1].Text)
	assert.Empty(t, diff.PartialWords)
}

func TestAppendContractsApostrophe(t *testing.T) {
	m := New(0)

	diff := m.Append(stt.StreamResponse{
		IsFinal: true,
		Words: []stt.Word{
			{Text: "it", StartSec: 0.0, EndSec: 0.2},
			{Text: "'s", StartSec: 0.2, EndSec: 0.3},
		},
	}, 0, 1.0)

	require.Len(t, diff.FinalWords[0], 1)
	assert.Equal(t, "it's", diff.FinalWords[0][0].Text)
}

func TestAppendDropsEmptyWordsAfterTrim(t *testing.T) {
	m := New(0)

	diff := m.Append(stt.StreamResponse{
		IsFinal: true,
		Words: []stt.Word{
			{Text: "  ", StartSec: 0.0, EndSec: 0.1},
			{Text: " hi ", StartSec: 0.1, EndSec: 0.3},
		},
	}, 0, 1.0)

	require.Len(t, diff.FinalWords[0], 1)
	assert.Equal(t, "hi", diff.FinalWords[0][0].Text)
}

func TestAppendHighConfidenceInterimReplacesSuffix(t *testing.T) {
	m := New(0)

	diff := m.Append(stt.StreamResponse{
		Words: []stt.Word{{Text: "hel", StartSec: 0.0, EndSec: 0.2}},
	}, 0, 0.9)
	assert.Equal(t, []stt.Word{{Text: "hel", StartSec: 0.0, EndSec: 0.2, Speaker: 0, ChannelIndex: 0}}, diff.PartialWords[0])

	diff = m.Append(stt.StreamResponse{
		Words: []stt.Word{{Text: "hello", StartSec: 0.0, EndSec: 0.4}},
	}, 0, 0.9)
	require.Len(t, diff.PartialWords[0], 1)
	assert.Equal(t, "hello", diff.PartialWords[0][0].Text)
}

func TestAppendLowConfidenceInterimKeepsPriorPartials(t *testing.T) {
	m := New(0)

	m.Append(stt.StreamResponse{
		Words: []stt.Word{{Text: "hel", StartSec: 0.0, EndSec: 0.2}},
	}, 0, 0.9)

	diff := m.Append(stt.StreamResponse{
		Words: []stt.Word{{Text: "junk", StartSec: 0.0, EndSec: 0.2}},
	}, 0, 0.2)

	require.Len(t, diff.PartialWords[0], 1)
	assert.Equal(t, "hel", diff.PartialWords[0][0].Text)
}

func TestAppendFinalPrunesStalePartials(t *testing.T) {
	m := New(0)

	m.Append(stt.StreamResponse{
		Words: []stt.Word{{Text: "hel", StartSec: 0.0, EndSec: 0.2}},
	}, 0, 0.9)

	m.Append(stt.StreamResponse{
		IsFinal: true,
		Words:   []stt.Word{{Text: "hello", StartSec: 0.0, EndSec: 0.4}},
	}, 0, 1.0)

	diff := m.Append(stt.StreamResponse{
		Words: []stt.Word{{Text: "next", StartSec: 0.4, EndSec: 0.6}},
	}, 0, 0.1)

	require.Len(t, diff.PartialWords[0], 0)
}

func TestAppendChannelsAreIndependent(t *testing.T) {
	m := New(0)

	m.Append(stt.StreamResponse{
		IsFinal: true,
		Words:   []stt.Word{{Text: "left", StartSec: 0.0, EndSec: 0.3}},
	}, 0, 1.0)

	diff := m.Append(stt.StreamResponse{
		IsFinal: true,
		Words:   []stt.Word{{Text: "right", StartSec: 0.0, EndSec: 0.3}},
	}, 1, 1.0)

	assert.Len(t, diff.FinalWords[1], 1)
	_, channelZeroTouched := diff.FinalWords[0]
	assert.False(t, channelZeroTouched)
}
