package audio

import "testing"

func silentChunk() AudioChunk {
	return AudioChunk{PCM: make([]byte, 320), Channels: 1, SampleHz: 16000}
}

func loudChunk() AudioChunk {
	pcm := make([]byte, 320)
	for i := 0; i+1 < len(pcm); i += 2 {
		pcm[i] = 0xff
		pcm[i+1] = 0x7f // near full-scale int16
	}
	return AudioChunk{PCM: pcm, Channels: 1, SampleHz: 16000}
}

func TestVADMaskerPreservesChunkCount(t *testing.T) {
	m := NewVADMasker(0.1, DefaultHangover)
	in := []AudioChunk{loudChunk(), silentChunk(), silentChunk(), silentChunk(), silentChunk(), silentChunk()}
	out := m.MaskAll(in)
	if len(out) != len(in) {
		t.Fatalf("expected %d chunks, got %d", len(in), len(out))
	}
}

func TestVADMaskerHangoverKeepsTrailingSpeech(t *testing.T) {
	m := NewVADMasker(0.1, 3)
	in := []AudioChunk{loudChunk(), silentChunk(), silentChunk(), silentChunk(), silentChunk()}
	out := m.MaskAll(in)

	if !out[0].Speech {
		t.Fatalf("loud chunk should be marked speech")
	}
	for i := 1; i <= 3; i++ {
		if !out[i].Speech {
			t.Fatalf("chunk %d within hangover window should still be speech", i)
		}
	}
	if out[4].Speech {
		t.Fatalf("chunk 4 is beyond hangover window and should not be speech")
	}
}

func TestVADMaskerSilenceNeverMarkedSpeech(t *testing.T) {
	m := NewVADMasker(0.1, 0)
	in := []AudioChunk{silentChunk(), silentChunk(), silentChunk()}
	out := m.MaskAll(in)
	for i, c := range out {
		if c.Speech {
			t.Fatalf("chunk %d: silent chunk should never be marked speech with zero hangover", i)
		}
	}
}

func TestVADMaskerZeroesNonSpeechPCMInPlace(t *testing.T) {
	m := NewVADMasker(0.1, 0)
	pcm := []byte{0x01, 0x00, 0x02, 0x00} // non-zero but well below the 0.1 RMS floor
	chunk := AudioChunk{PCM: pcm, Channels: 1, SampleHz: 16000}

	before := len(chunk.PCM)
	out := m.Mask(chunk)

	if out.Speech {
		t.Fatalf("quiet chunk should not be marked speech")
	}
	if len(out.PCM) != before {
		t.Fatalf("expected PCM length preserved at %d, got %d", before, len(out.PCM))
	}
	for i, b := range out.PCM {
		if b != 0 {
			t.Fatalf("byte %d: expected zeroed PCM for non-speech chunk, got %#x", i, b)
		}
	}
}

func TestVADMaskerLeavesSpeechPCMUntouched(t *testing.T) {
	m := NewVADMasker(0.1, DefaultHangover)
	c := loudChunk()
	want := append([]byte(nil), c.PCM...)

	out := m.Mask(c)

	if !out.Speech {
		t.Fatalf("loud chunk should be marked speech")
	}
	for i := range out.PCM {
		if out.PCM[i] != want[i] {
			t.Fatalf("byte %d: speech PCM should be left untouched, want %#x got %#x", i, want[i], out.PCM[i])
		}
	}
}

func TestVADMaskerResetClearsHangover(t *testing.T) {
	m := NewVADMasker(0.1, 3)
	m.Mask(loudChunk())
	m.Reset()
	out := m.Mask(silentChunk())
	if out.Speech {
		t.Fatalf("expected silence after Reset to not be marked speech")
	}
}
