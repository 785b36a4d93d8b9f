package tweak

import (
	"fmt"

	"mirage-tweaks/pkg/patch"
	"mirage-tweaks/pkg/process"
)

var SprintSpeed = Definition{
	Key:    "sprint-speed",
	Name:   "sprint speed",
	Bounds: Bounds{Min: 0, Max: 12, Default: 6.8},
	Intent: Increase,
	Clamp:  ClampLow,
}

var sprintSpeedPath = []uintptr{0x629A188, 0x10, 0, 0x120, 0x570}

// NewSprintSpeed resolves the sprint speed field through its pointer path
// from the module base. The address is fixed for the life of the tweak.
func NewSprintSpeed(t process.Target, store Store) (*Numeric[float32], error) {
	addr, err := process.FollowPointers(t, t.BaseAddress(), sprintSpeedPath...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SprintSpeed.Name, err)
	}
	patcher := PatcherFunc[float32](func(v float32) (Live[float32], error) {
		return single[float32](patch.Apply(t, addr, v))
	})
	return New[float32](SprintSpeed, patcher, store), nil
}
