// Package patch writes values into a target and puts the original bytes back
// when released.
package patch

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"mirage-tweaks/pkg/process"
)

var ErrReleased = errors.New("patch released")

// Releaser restores whatever it changed. Release never fails and may be
// called more than once.
type Releaser interface {
	Release()
}

// Patch is a live write of a T-sized value. The pre-image is captured once,
// before the first write, and never changes.
type Patch[T any] struct {
	mem      process.Memory
	addr     uintptr
	original []byte
	released bool
}

// Apply reads the current bytes at addr and then writes v. On error nothing
// is returned and nothing needs restoring.
func Apply[T any](mem process.Memory, addr uintptr, v T) (*Patch[T], error) {
	image, err := process.Encode(v)
	if err != nil {
		return nil, err
	}
	original, err := process.ReadBytes(mem, addr, len(image))
	if err != nil {
		return nil, fmt.Errorf("capture 0x%X: %w", addr, err)
	}
	if err := mem.Write(addr, image); err != nil {
		return nil, fmt.Errorf("patch 0x%X: %w", addr, err)
	}

	log.WithField("addr", fmt.Sprintf("0x%X", addr)).Debugf("applied %T patch", v)
	return &Patch[T]{mem: mem, addr: addr, original: original}, nil
}

func (p *Patch[T]) Address() uintptr {
	return p.addr
}

// Original decodes the captured pre-image.
func (p *Patch[T]) Original() (T, error) {
	return process.Decode[T](p.original)
}

// Update overwrites the live value. The captured original is untouched.
func (p *Patch[T]) Update(v T) error {
	if p.released {
		return ErrReleased
	}
	if err := process.WriteValue(p.mem, p.addr, v); err != nil {
		return fmt.Errorf("update 0x%X: %w", p.addr, err)
	}
	return nil
}

// Release writes the original bytes back. Failures are logged, at debug
// level when the target has already exited.
func (p *Patch[T]) Release() {
	if p == nil || p.released {
		return
	}
	p.released = true

	entry := log.WithField("addr", fmt.Sprintf("0x%X", p.addr))
	if err := p.mem.Write(p.addr, p.original); err != nil {
		if l, ok := p.mem.(process.Liveness); ok && !l.Alive() {
			entry.Debugf("restore skipped, target exited: %v", err)
			return
		}
		entry.Warnf("restore failed: %v", err)
		return
	}
	entry.Debug("restored")
}

// Set releases its members in reverse order of Add.
type Set struct {
	items []Releaser
}

func (s *Set) Add(r Releaser) {
	s.items = append(s.items, r)
}

func (s *Set) Len() int {
	return len(s.items)
}

func (s *Set) Release() {
	for i := len(s.items) - 1; i >= 0; i-- {
		s.items[i].Release()
	}
	s.items = nil
}
