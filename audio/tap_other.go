//go:build !linux && !darwin

package audio

import (
	"github.com/gen2brain/malgo"

	"github.com/openscribe/transcribe-core/errs"
)

// No supported platform-specific tap exists here; callers downgrade to
// MicOnly, per spec.md §4.1's "on unsupported platforms, speaker capture is
// absent" rule.
func findSystemTapDevice(mctx *malgo.AllocatedContext) (*malgo.DeviceID, error) {
	return nil, errs.ErrDeviceUnavailable
}
