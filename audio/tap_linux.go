//go:build linux

package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/openscribe/transcribe-core/errs"
)

// findSystemTapDevice locates a PulseAudio/PipeWire monitor source, the
// standard way to read "what's playing" on Linux: every sink exposes a
// matching ".monitor" capture source, so opening one of those as an
// ordinary malgo.Capture device is the system-audio tap (spec.md §4.1).
func findSystemTapDevice(mctx *malgo.AllocatedContext) (*malgo.DeviceID, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating capture devices: %v", errs.ErrDeviceUnavailable, err)
	}
	if len(infos) == 0 {
		return nil, errs.ErrAccessibilityPermissionDenied
	}
	for i := range infos {
		name := strings.ToLower(infos[i].Name())
		if strings.Contains(name, "monitor") {
			id := infos[i].ID
			return &id, nil
		}
	}
	return nil, errs.ErrDeviceUnavailable
}
