//go:build darwin

package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/openscribe/transcribe-core/errs"
)

// macOS has no public miniaudio-level API for CoreAudio's per-process tap
// (introduced in macOS 14.4); the practical integration point used by Go
// audio tools without a CoreAudio cgo binding is a virtual loopback driver
// installed as an aggregate/multi-output device (BlackHole, Soundflower, or
// a user-configured "Aggregate Device"), which shows up as an ordinary
// capture device. findSystemTapDevice looks for one of those by name
// (spec.md §4.1's "process-tap + aggregate device" requirement).
var knownLoopbackNames = []string{"blackhole", "soundflower", "aggregate", "loopback"}

func findSystemTapDevice(mctx *malgo.AllocatedContext) (*malgo.DeviceID, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating capture devices: %v", errs.ErrDeviceUnavailable, err)
	}
	if len(infos) == 0 {
		// An empty device list on macOS is the signature of a missing
		// microphone/system-audio recording permission grant, not an absent
		// driver: a process without the entitlement sees no devices at all.
		return nil, errs.ErrAccessibilityPermissionDenied
	}
	for i := range infos {
		name := strings.ToLower(infos[i].Name())
		for _, known := range knownLoopbackNames {
			if strings.Contains(name, known) {
				id := infos[i].ID
				return &id, nil
			}
		}
	}
	return nil, errs.ErrDeviceUnavailable
}
