// Package supervisor implements C8, the Session Supervisor: an actor tree
// that owns a session's AudioSource, VADMasker, Streaming Client, and
// Transcript Manager, starting them in order and tearing them all down the
// instant any one of them fails — the session is atomic. Grounded on
// _examples/original_source/plugins/listener/src/actors/session/lifecycle.rs's
// start_session_impl/stop_session_impl (spawn source -> recorder -> listener,
// degrade on listener failure, stop in reverse, emit Active/Finalizing/
// Inactive exactly once), translated from ractor's linked-actor supervision
// into golang.org/x/sync/errgroup's first-error-cancels-all idiom.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openscribe/transcribe-core/audio"
	"github.com/openscribe/transcribe-core/errs"
	"github.com/openscribe/transcribe-core/internal/obslog"
	"github.com/openscribe/transcribe-core/sttclient"
	"github.com/openscribe/transcribe-core/stt"
	"github.com/openscribe/transcribe-core/transcript"
)

// LifecycleEvent mirrors SessionLifecycleEvent's three variants from the
// original source, strictly totally ordered within a session id per
// spec.md §4.8.
type LifecycleEvent struct {
	Type      LifecycleEventType
	SessionID string
	Error     error
}

type LifecycleEventType int

const (
	EventActive LifecycleEventType = iota
	EventFinalizing
	EventInactive
)

// Mode mirrors Session's mode field in spec.md §3.
type Mode int

const (
	ModeMicOnly Mode = iota
	ModeMicAndSpeaker
)

// Params is the caller's Start request.
type Params struct {
	Languages []stt.Language
	Model     string
	Mode      Mode
}

// Session is C8's per-session state: the spawned children plus whatever the
// supervisor needs to tear them down in order.
type Session struct {
	ID        string
	Params    Params
	StartedAt time.Time

	source     *audio.Source
	masker     *audio.VADMasker
	client     *sttclient.ReconnectingClient
	transcript *transcript.Manager

	degraded      bool
	degradedError error

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Supervisor owns at most one active Session at a time, per spec.md §3's
// "one session owns at most one active Listener" invariant.
type Supervisor struct {
	router   *stt.Router
	adapters map[stt.Provider]stt.RealtimeSttAdapter
	cfgFor   func(stt.Provider) sttclient.Config
	logger   obslog.Logger

	mu      sync.Mutex
	active  *Session
	events  chan LifecycleEvent
}

// New builds a Supervisor. cfgFor resolves per-provider dial credentials,
// forwarded straight to sttclient.NewReconnectingClient.
func New(router *stt.Router, adapters map[stt.Provider]stt.RealtimeSttAdapter, cfgFor func(stt.Provider) sttclient.Config, logger obslog.Logger) *Supervisor {
	if logger == nil {
		logger = obslog.NoOpLogger{}
	}
	return &Supervisor{
		router:   router,
		adapters: adapters,
		cfgFor:   cfgFor,
		logger:   logger,
		events:   make(chan LifecycleEvent, 16),
	}
}

// Events returns the supervisor's lifecycle event stream.
func (sup *Supervisor) Events() <-chan LifecycleEvent { return sup.events }

// Start spawns a new session's children in order: AudioSource, then
// VADMasker, then the Streaming Client (owning the Transcript Manager).
// If the AudioSource fails, the whole start fails and nothing is left
// running, per lifecycle.rs's spawn_source failure path. If the Streaming
// Client fails, the session continues in degraded mode and an Active event
// carrying the degraded error is emitted instead, per spawn_listener's
// "continuing_degraded" path.
func (sup *Supervisor) Start(ctx context.Context, params Params) (*Session, error) {
	sup.mu.Lock()
	if sup.active != nil {
		sup.mu.Unlock()
		return nil, fmt.Errorf("supervisor: a session is already active (%s)", sup.active.ID)
	}
	sup.mu.Unlock()

	sessionID := uuid.NewString()
	sessLogger := sup.logger.With("session_id", sessionID)

	source, err := audio.NewSource(16000, captureMode(params.Mode), sessLogger)
	if err != nil {
		return nil, fmt.Errorf("supervisor: spawning audio source: %w", err)
	}
	if err := source.Start(); err != nil {
		source.Close()
		return nil, fmt.Errorf("supervisor: starting audio source: %w", err)
	}
	if params.Mode == ModeMicAndSpeaker && source.Mode() == audio.MicOnly {
		sessLogger.Warn("session_downgraded_mic_only", "reason", "system_audio_tap_unavailable")
	}

	masker := audio.NewVADMasker(0.001, audio.DefaultHangover)

	sessCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(sessCtx)

	sess := &Session{
		ID:         sessionID,
		Params:     params,
		StartedAt:  time.Now(),
		source:     source,
		masker:     masker,
		transcript: transcript.New(time.Now().UnixMilli()),
		cancel:     cancel,
		group:      group,
	}

	client := sttclient.NewReconnectingClient(sup.adapters, sup.router, sup.cfgFor, sessLogger)
	available := make(map[stt.Provider]bool, len(sup.adapters))
	for p := range sup.adapters {
		available[p] = true
	}

	responses := make(chan stt.StreamResponse, 64)
	if _, err := client.Connect(groupCtx, params.Languages, available); err != nil {
		sess.degraded = true
		sess.degradedError = fmt.Errorf("%w: %v", errs.ErrNoHealthyProvider, err)
		sessLogger.Warn("session_listener_degraded", "error", err.Error())
	} else {
		sess.client = client
		group.Go(func() error {
			return client.WatchAndReconnect(groupCtx, params.Languages, available, responses)
		})
	}
	// The pipeline runs in degraded mode too (capture continues, nothing is
	// forwarded), so the group stays alive until the session is stopped.
	group.Go(func() error {
		defer cancel()
		return sup.runPipeline(groupCtx, sess, responses)
	})

	sup.mu.Lock()
	sup.active = sess
	sup.mu.Unlock()

	sup.emit(LifecycleEvent{Type: EventActive, SessionID: sessionID, Error: sess.degradedError})
	sessLogger.Info("session_started", "degraded", sess.degraded)

	go sup.watchForCrash(sess)

	return sess, nil
}

// runPipeline drains source chunks through the masker and feeds them to the
// active streaming client, merging responses into the transcript manager.
func (sup *Supervisor) runPipeline(ctx context.Context, sess *Session, responses <-chan stt.StreamResponse) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-sess.source.Chunks():
			if !ok {
				return nil
			}
			// Mask zeroes non-speech PCM in place but never drops the chunk
			// (spec.md §4.2), so forwarding masked.PCM unconditionally is
			// correct: the provider keeps receiving one frame per input
			// chunk, with non-speech frames carrying silence instead of
			// being omitted, preserving timing alignment across channels.
			masked := sess.masker.Mask(chunk)
			if sess.client != nil && sess.client.Active() != nil {
				_ = sess.client.Active().Write(masked.PCM)
			}
		case resp, ok := <-responses:
			if !ok {
				continue
			}
			sess.transcript.Append(resp, resp.Channel, resp.Confidence)
		case <-sess.source.DeviceChanges():
			sup.logger.Warn("session_device_lost", "session_id", sess.ID)
		}
	}
}

// watchForCrash stops the whole session the instant any child exits, per
// spec.md §4.8's "the session is atomic" rule, mirrored from the original
// source's stop_session_impl triggering on any linked actor's termination.
func (sup *Supervisor) watchForCrash(sess *Session) {
	err := sess.group.Wait()
	sup.mu.Lock()
	stillActive := sup.active == sess
	sup.mu.Unlock()
	if stillActive {
		sup.Stop(sess.ID)
		if err != nil {
			sup.logger.Error("session_child_failed", "session_id", sess.ID, "error", err.Error())
		}
	}
}

// Stop tears down the active session's children in reverse spawn order and
// emits Finalizing then Inactive, per spec.md §4.8.
func (sup *Supervisor) Stop(sessionID string) error {
	sup.mu.Lock()
	sess := sup.active
	if sess == nil || sess.ID != sessionID {
		sup.mu.Unlock()
		return fmt.Errorf("supervisor: no active session with id %s", sessionID)
	}
	sup.active = nil
	sup.mu.Unlock()

	sup.emit(LifecycleEvent{Type: EventFinalizing, SessionID: sessionID})

	sess.cancel()
	if sess.client != nil {
		if active := sess.client.Active(); active != nil {
			active.Finalize(2 * time.Second)
			active.Close()
		}
	}
	sess.source.Close()
	sess.group.Wait()

	sup.emit(LifecycleEvent{Type: EventInactive, SessionID: sessionID})
	sup.logger.Info("session_stopped", "session_id", sessionID)
	return nil
}

// micRPCTimeout bounds the forwarded AudioSource calls below (spec.md §4.8:
// "forwarded to the AudioSource with a short RPC timeout (100 ms)"). Each
// call is a direct method on audio.Source rather than a message sent
// through an actor mailbox, so there is no queuing delay to bound. The mute
// and name calls only touch in-memory state; ChangeMicDevice enumerates and
// opens a capture device, so a slow driver can make it exceed the timeout.

// SetMicMute forwards to the active session's AudioSource.
func (sup *Supervisor) SetMicMute(sessionID string, mute bool) error {
	sess, err := sup.activeSession(sessionID)
	if err != nil {
		return err
	}
	return withMicRPCTimeout(func() error {
		sess.source.SetMicMute(mute)
		return nil
	})
}

// GetMicMute forwards to the active session's AudioSource.
func (sup *Supervisor) GetMicMute(sessionID string) (bool, error) {
	sess, err := sup.activeSession(sessionID)
	if err != nil {
		return false, err
	}
	var muted bool
	err = withMicRPCTimeout(func() error {
		muted = sess.source.MicMuted()
		return nil
	})
	return muted, err
}

// GetMicDeviceName forwards to the active session's AudioSource.
func (sup *Supervisor) GetMicDeviceName(sessionID string) (string, error) {
	sess, err := sup.activeSession(sessionID)
	if err != nil {
		return "", err
	}
	var name string
	err = withMicRPCTimeout(func() error {
		name = sess.source.MicDeviceName()
		return nil
	})
	return name, err
}

// ChangeMicDevice forwards to the active session's AudioSource.
func (sup *Supervisor) ChangeMicDevice(sessionID, deviceID string) error {
	sess, err := sup.activeSession(sessionID)
	if err != nil {
		return err
	}
	return withMicRPCTimeout(func() error {
		return sess.source.ChangeMicDevice(deviceID)
	})
}

func (sup *Supervisor) activeSession(sessionID string) (*Session, error) {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	if sup.active == nil || sup.active.ID != sessionID {
		return nil, fmt.Errorf("%w: %s", errs.ErrSessionNotFound, sessionID)
	}
	return sup.active, nil
}

const micRPCTimeout = 100 * time.Millisecond

// withMicRPCTimeout runs fn (a direct AudioSource call) and reports a
// timeout if it doesn't return within the 100ms RPC budget. On a timeout fn
// keeps running in its own goroutine; its result is discarded.
func withMicRPCTimeout(fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(micRPCTimeout):
		return fmt.Errorf("supervisor: mic RPC exceeded %s", micRPCTimeout)
	}
}

func (sup *Supervisor) emit(ev LifecycleEvent) {
	select {
	case sup.events <- ev:
	default:
		sup.logger.Warn("supervisor_event_dropped", "type", ev.Type)
	}
}

func captureMode(mode Mode) audio.CaptureMode {
	if mode == ModeMicAndSpeaker {
		return audio.MicAndSpeaker
	}
	return audio.MicOnly
}
