package tweak

import (
	"fmt"

	"mirage-tweaks/pkg/patch"
	"mirage-tweaks/pkg/process"
	"mirage-tweaks/pkg/scan"
)

// movss xmm4, dword ptr [rip+disp32] followed by movss xmm5, [rsp+58h].
var ejectHeightSignature = scan.MustParsePattern("F3 0F 10 25 ?? ?? ?? ?? F3 0F 10 6C 24 58")

var movssXmm4RIP = []byte{0xF3, 0x0F, 0x10, 0x25}

const ejectHeightInstrLen = 8

var EjectHeight = Definition{
	Key:    "eject-height",
	Name:   "eject height",
	Bounds: Bounds{Min: 0, Max: 6, Default: 1.3},
	Intent: Increase,
	Clamp:  ClampLow,
}

// ejectHeightPatcher points the load instruction at a code cave holding the
// tuned value.
type ejectHeightPatcher struct {
	mem      process.Memory
	instr    uintptr
	cave     uintptr
	redirect [ejectHeightInstrLen]byte
}

// NewEjectHeight scans the code section for the eject height load and picks
// a cave after it. Both are resolved once.
func NewEjectHeight(t process.Target, store Store) (*Numeric[float32], error) {
	m, err := scan.Find(t, scan.CodeSection, ejectHeightSignature)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EjectHeight.Name, err)
	}
	p, err := newEjectHeightPatcher(t, m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EjectHeight.Name, err)
	}
	return New[float32](EjectHeight, p, store), nil
}

func newEjectHeightPatcher(mem process.Memory, m scan.Match) (*ejectHeightPatcher, error) {
	instr := m.Address()
	cave, err := scan.FindCave(m.Region, instr, ejectHeightInstrLen, scan.DefaultFiller)
	if err != nil {
		return nil, err
	}
	disp, err := scan.Displacement(cave, instr, ejectHeightInstrLen)
	if err != nil {
		return nil, err
	}

	p := &ejectHeightPatcher{mem: mem, instr: instr, cave: cave}
	copy(p.redirect[:], scan.EncodeRel32(movssXmm4RIP, disp))
	return p, nil
}

func (p *ejectHeightPatcher) Patch(v float32) (_ Live[float32], err error) {
	set := &patch.Set{}
	defer func() {
		if err != nil {
			set.Release()
		}
	}()

	// The cave must hold the value before the instruction reads from it.
	value, err := patch.Apply(p.mem, p.cave, v)
	if err != nil {
		return nil, fmt.Errorf("cave value: %w", err)
	}
	set.Add(value)

	redirect, err := patch.Apply(p.mem, p.instr, p.redirect)
	if err != nil {
		return nil, fmt.Errorf("redirect: %w", err)
	}
	set.Add(redirect)

	return &group[float32]{value: value, set: set}, nil
}
