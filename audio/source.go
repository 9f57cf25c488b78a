package audio

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/openscribe/transcribe-core/errs"
	"github.com/openscribe/transcribe-core/internal/obslog"
)

// CaptureMode selects which side(s) of the conversation a Source captures,
// mirroring supervisor.Mode one level down (audio can't import supervisor,
// so the two enums are kept in sync by the caller).
type CaptureMode int

const (
	MicOnly CaptureMode = iota
	MicAndSpeaker
)

// Source is C1, the Audio Source. In MicOnly mode it opens a single mono
// capture device. In MicAndSpeaker mode it additionally opens a
// platform-specific system-output tap (findSystemTapDevice, implemented per
// GOOS) and emits interleaved stereo chunks pairing mic and tap samples,
// per spec.md §4.1. Grounded on the teacher's cmd/agent/main.go
// malgo.InitDevice(Duplex, ...) setup, generalized from one inline duplex
// callback into two independently-opened capture devices plus a pairing
// stage, since a duplex device only gives loopback on platforms that
// support playback-as-capture, not a true system-output tap.
type Source struct {
	sampleRate int
	mode       CaptureMode
	logger     obslog.Logger

	mctx    *malgo.AllocatedContext
	mic     *malgo.Device
	tap     *malgo.Device
	tapless bool // true once the tap device failed to open; session runs MicOnly

	mu       sync.Mutex
	closed   bool
	out      chan AudioChunk
	muted    bool
	micName  string

	pairMu sync.Mutex
	micBuf []byte
	tapBuf []byte

	dualFrames chan DualAudioFrame
	pairWG     sync.WaitGroup

	deviceChanges chan struct{}
	stopPairing   chan struct{}
}

// NewSource initializes a malgo context and opens the capture device(s) for
// the requested mode. If mode is MicAndSpeaker but no system-output tap can
// be found (unsupported platform, missing driver, missing permission), the
// Source logs the reason and runs as MicOnly instead of failing outright —
// only the speaker side is affected (spec.md §4.1: "fatal for speaker
// capture only").
func NewSource(sampleRate int, mode CaptureMode, logger obslog.Logger) (*Source, error) {
	if logger == nil {
		logger = obslog.NoOpLogger{}
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: malgo context init failed: %v", errs.ErrProviderUnavailable, err)
	}

	s := &Source{
		sampleRate:    sampleRate,
		mode:          mode,
		logger:        logger,
		mctx:          mctx,
		out:           make(chan AudioChunk, 256),
		dualFrames:    make(chan DualAudioFrame, 64),
		deviceChanges: make(chan struct{}, 1),
		stopPairing:   make(chan struct{}),
	}

	micConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	micConfig.Capture.Format = malgo.FormatS16
	micConfig.Capture.Channels = 1
	micConfig.SampleRate = uint32(sampleRate)
	micConfig.Alsa.NoMMap = 1

	mic, err := malgo.InitDevice(mctx.Context, micConfig, malgo.DeviceCallbacks{
		Data: s.onMicSamples,
		Stop: s.onDeviceStop,
	})
	if err != nil {
		mctx.Uninit()
		return nil, fmt.Errorf("%w: malgo mic device init failed: %v", errs.ErrDeviceUnavailable, err)
	}
	s.mic = mic
	s.micName = "default"

	if mode == MicAndSpeaker {
		tapID, tapErr := findSystemTapDevice(mctx)
		if tapErr != nil {
			s.tapless = true
			logger.Warn("system_audio_tap_unavailable", "error", tapErr.Error())
		} else {
			tapConfig := malgo.DefaultDeviceConfig(malgo.Capture)
			tapConfig.Capture.Format = malgo.FormatS16
			tapConfig.Capture.Channels = 1
			tapConfig.Capture.DeviceID = tapID
			tapConfig.SampleRate = uint32(sampleRate)
			tapConfig.Alsa.NoMMap = 1

			tap, err := malgo.InitDevice(mctx.Context, tapConfig, malgo.DeviceCallbacks{
				Data: s.onTapSamples,
				Stop: s.onDeviceStop,
			})
			if err != nil {
				s.tapless = true
				logger.Warn("system_audio_tap_open_failed", "error", err.Error())
			} else {
				s.tap = tap
			}
		}
	}

	return s, nil
}

// SetMicMute zeroes outgoing mic samples while keeping the capture thread
// alive, so unmuting resumes instantly instead of reopening the device
// (spec.md §4.1/§4.8).
func (s *Source) SetMicMute(mute bool) {
	s.mu.Lock()
	s.muted = mute
	s.mu.Unlock()
}

// MicMuted reports the current mute state (spec.md §4.8's GetMicMute).
func (s *Source) MicMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// MicDeviceName reports the name of the currently open mic device
// (spec.md §4.8's GetMicDeviceName).
func (s *Source) MicDeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.micName
}

// ChangeMicDevice tears down the current mic capture device and reopens a
// new one matched by (case-insensitive substring of) name, per spec.md
// §4.8's ChangeMicDevice(id). The system tap device, if any, is untouched.
func (s *Source) ChangeMicDevice(name string) error {
	infos, err := s.mctx.Devices(malgo.Capture)
	if err != nil {
		return fmt.Errorf("%w: enumerating capture devices: %v", errs.ErrDeviceUnavailable, err)
	}

	var match *malgo.DeviceID
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), strings.ToLower(name)) {
			id := infos[i].ID
			match = &id
			break
		}
	}
	if match == nil {
		return fmt.Errorf("%w: no capture device matching %q", errs.ErrDeviceUnavailable, name)
	}

	micConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	micConfig.Capture.Format = malgo.FormatS16
	micConfig.Capture.Channels = 1
	micConfig.Capture.DeviceID = match
	micConfig.SampleRate = uint32(s.sampleRate)
	micConfig.Alsa.NoMMap = 1

	newMic, err := malgo.InitDevice(s.mctx.Context, micConfig, malgo.DeviceCallbacks{
		Data: s.onMicSamples,
		Stop: s.onDeviceStop,
	})
	if err != nil {
		return fmt.Errorf("%w: opening %q: %v", errs.ErrDeviceUnavailable, name, err)
	}
	if err := newMic.Start(); err != nil {
		newMic.Uninit()
		return fmt.Errorf("%w: starting %q: %v", errs.ErrProviderUnavailable, name, err)
	}

	s.mu.Lock()
	old := s.mic
	s.mic = newMic
	s.micName = name
	s.mu.Unlock()

	if old != nil {
		old.Uninit()
	}
	return nil
}

// Mode reports the mode the Source is actually running in: MicAndSpeaker
// only if a system-output tap device was successfully opened.
func (s *Source) Mode() CaptureMode {
	if s.tap == nil {
		return MicOnly
	}
	return MicAndSpeaker
}

// Channels reports the channel count of AudioChunks this Source emits.
func (s *Source) Channels() int {
	if s.tap != nil {
		return 2
	}
	return 1
}

// Start begins capture, delivering chunks on Chunks().
func (s *Source) Start() error {
	if err := s.mic.Start(); err != nil {
		return fmt.Errorf("%w: starting mic device: %v", errs.ErrProviderUnavailable, err)
	}
	if s.tap != nil {
		if err := s.tap.Start(); err != nil {
			return fmt.Errorf("%w: starting system tap device: %v", errs.ErrProviderUnavailable, err)
		}
		s.pairWG.Add(1)
		go s.pairLoop()
	}
	return nil
}

// Chunks returns the channel AudioChunks are delivered on.
func (s *Source) Chunks() <-chan AudioChunk {
	return s.out
}

// DualFrames returns the channel of raw mic/loopback pairs, available only
// in MicAndSpeaker mode; consumers that want channel-split access instead
// of the mixed interleaved AudioChunk stream (e.g. a future per-speaker
// diagnostic) read from here.
func (s *Source) DualFrames() <-chan DualAudioFrame {
	return s.dualFrames
}

// DeviceChanges signals when a capture device stopped unexpectedly.
func (s *Source) DeviceChanges() <-chan struct{} {
	return s.deviceChanges
}

// Close stops and releases the device(s). Safe to call multiple times.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	mic := s.mic
	// Release mu before waiting on pairLoop and the device callbacks: both
	// take mu (publish, onMicSamples), so holding it here could deadlock.
	s.mu.Unlock()

	if s.tap != nil {
		close(s.stopPairing)
		s.pairWG.Wait()
		s.tap.Uninit()
	}
	if mic != nil {
		mic.Uninit()
	}
	if s.mctx != nil {
		s.mctx.Uninit()
	}
	close(s.out)
	close(s.dualFrames)
	return nil
}

func (s *Source) onMicSamples(pOutput, pInput []byte, frameCount uint32) {
	if pInput == nil {
		return
	}

	s.mu.Lock()
	muted := s.muted
	s.mu.Unlock()
	if muted {
		// set_mic_mute(true) zeroes outgoing mic samples but keeps the
		// capture thread alive (spec.md §4.1): mute the copy, not pInput
		// itself, which miniaudio may reuse across callbacks.
		pInput = make([]byte, len(pInput))
	}

	if s.tap != nil {
		s.pairMu.Lock()
		s.micBuf = append(s.micBuf, pInput...)
		s.pairMu.Unlock()
		return
	}
	s.emitMono(pInput)
}

func (s *Source) onTapSamples(pOutput, pInput []byte, frameCount uint32) {
	if pInput == nil {
		return
	}
	s.pairMu.Lock()
	s.tapBuf = append(s.tapBuf, pInput...)
	s.pairMu.Unlock()
}

// pairLoop drains the mic and tap buffers in lockstep, interleaving each
// matched pair of mono chunks into one stereo AudioChunk (spec.md §4.1's
// dual-stream capture), and publishing the raw pair as a DualAudioFrame.
func (s *Source) pairLoop() {
	defer s.pairWG.Done()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopPairing:
			return
		case <-ticker.C:
			s.drainPaired()
		}
	}
}

func (s *Source) drainPaired() {
	s.pairMu.Lock()
	n := len(s.micBuf)
	if len(s.tapBuf) < n {
		n = len(s.tapBuf)
	}
	// Round down to a whole number of 16-bit samples.
	n -= n % 2
	if n == 0 {
		s.pairMu.Unlock()
		return
	}
	mic := append([]byte(nil), s.micBuf[:n]...)
	tap := append([]byte(nil), s.tapBuf[:n]...)
	s.micBuf = s.micBuf[n:]
	s.tapBuf = s.tapBuf[n:]
	s.pairMu.Unlock()

	now := time.Now()
	select {
	case s.dualFrames <- DualAudioFrame{Capture: mic, Loopback: tap, Timestamp: now}:
	default:
		s.logger.Warn("audio dual frame channel full, dropping frame")
	}

	stereo := Interleave(mic, tap)
	s.publish(AudioChunk{PCM: stereo, Channels: 2, SampleHz: s.sampleRate, Timestamp: now})
}

func (s *Source) emitMono(pcm []byte) {
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	s.publish(AudioChunk{PCM: chunk, Channels: 1, SampleHz: s.sampleRate, Timestamp: time.Now()})
}

func (s *Source) publish(chunk AudioChunk) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	select {
	case s.out <- chunk:
	default:
		s.logger.Warn("audio source channel full, dropping chunk")
	}
}

func (s *Source) onDeviceStop() {
	select {
	case s.deviceChanges <- struct{}{}:
	default:
	}
}
