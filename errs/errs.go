// Package errs defines the sentinel errors shared across transcribe-core and
// the three-category classification used to decide retry behavior.
package errs

import "errors"

var (
	// ErrProviderUnavailable means a vendor adapter could not be dialed or
	// authenticated at all (DNS failure, 401, connection refused).
	ErrProviderUnavailable = errors.New("stt provider unavailable")

	// ErrProviderRejected means the vendor accepted the connection but refused
	// the request (bad params, unsupported language, quota exceeded).
	ErrProviderRejected = errors.New("stt provider rejected request")

	// ErrStreamClosed means the underlying transport closed, expectedly or not.
	ErrStreamClosed = errors.New("stt stream closed")

	// ErrNoHealthyProvider means the router's chain is empty: no provider in
	// the priority list is both available and within its failure budget.
	ErrNoHealthyProvider = errors.New("no healthy stt provider for requested languages")

	// ErrSessionNotFound is returned by the supervisor for operations against
	// an unknown or already-finalized session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAlreadyFinalizing guards against double-stop of a session.
	ErrAlreadyFinalizing = errors.New("session already finalizing")

	// ErrNilAdapter guards constructors against a nil RealtimeSttAdapter.
	ErrNilAdapter = errors.New("required adapter is nil")

	// ErrAudioSourceClosed is returned when writing to a closed audio source.
	ErrAudioSourceClosed = errors.New("audio source closed")

	// ErrDeviceUnavailable means a capture device could not be opened at all
	// (unplugged, claimed exclusively by another process, no matching
	// loopback driver installed for the system-audio tap). spec.md §4.1.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrAccessibilityPermissionDenied means the OS refused to hand back any
	// capture devices for the system-audio tap, the signature of a missing
	// screen/system-audio-recording permission grant rather than a missing
	// driver. Fatal for speaker capture only: the session still runs
	// MicOnly (spec.md §4.1).
	ErrAccessibilityPermissionDenied = errors.New("system audio tap permission denied")
)

// Category buckets an error for retry/backoff decisions, independent of its
// concrete type.
type Category int

const (
	// CategoryFatal means retrying will not help; the session must end.
	CategoryFatal Category = iota
	// CategoryDegraded means one provider or channel failed but the session
	// can continue with reduced capability.
	CategoryDegraded
	// CategoryTransient means a retry, possibly against the same provider,
	// is likely to succeed.
	CategoryTransient
)

// Classify maps a known sentinel (or a wrapped variant of one) to its retry
// category. Unrecognized errors are treated as fatal, matching the teacher's
// fail-closed style in pkg/orchestrator/errors.go.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryTransient
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrStreamClosed):
		return CategoryTransient
	case errors.Is(err, ErrProviderRejected), errors.Is(err, ErrNoHealthyProvider):
		return CategoryDegraded
	case errors.Is(err, ErrAccessibilityPermissionDenied):
		return CategoryDegraded
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrAlreadyFinalizing), errors.Is(err, ErrNilAdapter), errors.Is(err, ErrDeviceUnavailable):
		return CategoryFatal
	default:
		return CategoryFatal
	}
}
