// Package audio implements the Audio Source (C1) and VAD Masker (C2)
// components: capturing mic and, optionally, system-output PCM16 audio into
// timestamped chunks and
// flagging which chunks carry speech before they reach a streaming client.
package audio

import (
	"bytes"
	"encoding/binary"
	"time"
)

// AudioChunk is a single slice of mono or interleaved PCM16 audio captured
// at a point in time, the unit C1 emits and C2 annotates.
type AudioChunk struct {
	PCM       []byte
	Channels  int
	SampleHz  int
	Timestamp time.Time
	// Speech is set by the VAD Masker; zero-value false until C2 runs.
	Speech bool
}

// DualAudioFrame carries a simultaneous capture-device (mic) and
// playback-loopback frame pair, built by Source's pairing stage in
// MicAndSpeaker mode from two separately opened capture devices (the mic
// and the system-output tap).
type DualAudioFrame struct {
	Capture   []byte
	Loopback  []byte
	Timestamp time.Time
}

// SampleCount returns the number of PCM16 samples per channel in the chunk.
func (c AudioChunk) SampleCount() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.PCM) / 2 / c.Channels
}

// Duration returns the chunk's playback duration given its sample rate.
func (c AudioChunk) Duration() time.Duration {
	if c.SampleHz == 0 {
		return 0
	}
	samples := c.SampleCount()
	return time.Duration(samples) * time.Second / time.Duration(c.SampleHz)
}

// Interleave combines two mono PCM16 buffers of equal sample count into one
// stereo interleaved buffer (L, R, L, R, ...). Used by batch adapters that
// upload dual-channel audio (spec.md's dual-channel interleave path).
func Interleave(left, right []byte) []byte {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	out := make([]byte, n*2)
	for i := 0; i+1 < n; i += 2 {
		copy(out[i*2:i*2+2], left[i:i+2])
		copy(out[i*2+2:i*2+4], right[i:i+2])
	}
	return out
}

// SplitChannels de-interleaves a stereo PCM16 buffer back into two mono
// buffers, used when a final transcript needs to recover which speaker-side
// channel a word came from (spec.md's post-hoc channel_index synthesis).
func SplitChannels(stereo []byte) (left, right []byte) {
	n := len(stereo) / 4
	left = make([]byte, n*2)
	right = make([]byte, n*2)
	for i := 0; i < n; i++ {
		copy(left[i*2:i*2+2], stereo[i*4:i*4+2])
		copy(right[i*2:i*2+2], stereo[i*4+2:i*4+4])
	}
	return left, right
}

// ToWAV wraps raw PCM16 in a RIFF/WAVE header, adapted from the teacher's
// pkg/audio/wav.go so batch-mode adapters (Gladia, Fireworks) that require a
// WAV upload can reuse the same capture buffer the streaming path uses.
func ToWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer

	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2
	dataLen := len(pcm)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}
