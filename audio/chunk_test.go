package audio

import (
	"bytes"
	"testing"
)

func TestInterleaveSplitChannelsRoundTrip(t *testing.T) {
	left := []byte{1, 2, 3, 4}
	right := []byte{5, 6, 7, 8}

	stereo := Interleave(left, right)
	gotLeft, gotRight := SplitChannels(stereo)

	if !bytes.Equal(gotLeft, left) {
		t.Errorf("left channel mismatch: got %v, want %v", gotLeft, left)
	}
	if !bytes.Equal(gotRight, right) {
		t.Errorf("right channel mismatch: got %v, want %v", gotRight, right)
	}
}

func TestToWAVHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav := ToWAV(pcm, 16000, 1)

	if string(wav[0:4]) != "RIFF" {
		t.Errorf("expected RIFF magic, got %q", wav[0:4])
	}
	if string(wav[8:12]) != "WAVE" {
		t.Errorf("expected WAVE magic, got %q", wav[8:12])
	}
	if !bytes.Contains(wav, pcm) {
		t.Errorf("expected wav output to contain original pcm data")
	}
}

func TestAudioChunkDuration(t *testing.T) {
	c := AudioChunk{PCM: make([]byte, 3200), Channels: 1, SampleHz: 16000}
	if c.SampleCount() != 1600 {
		t.Errorf("expected 1600 samples, got %d", c.SampleCount())
	}
	if c.Duration() != 100_000_000 { // 100ms in nanoseconds
		t.Errorf("expected 100ms duration, got %v", c.Duration())
	}
}
