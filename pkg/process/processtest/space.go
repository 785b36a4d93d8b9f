// Package processtest provides an in-memory process.Target for tests.
package processtest

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"mirage-tweaks/pkg/process"
)

var (
	ErrUnmapped = errors.New("address not mapped")
	ErrNoAccess = errors.New("region not accessible")
	ErrExited   = errors.New("process exited")
)

type region struct {
	info    process.RegionInfo
	data    []byte
	readErr error
}

// Space is a fake address space. Regions never overlap; gaps between them are
// reported as free (uncommitted) ranges by QueryRegion, like the OS does.
type Space struct {
	mu       sync.Mutex
	base     uintptr
	regions  []*region
	reads    []uintptr
	writes   int
	writeErr error
	exited   bool
}

// New returns an empty space whose main module is loaded at base.
func New(base uintptr) *Space {
	return &Space{base: base}
}

// Map adds a committed, readable and writable region holding a copy of data.
func (s *Space) Map(addr uintptr, data []byte) {
	s.MapRegion(process.RegionInfo{
		Base:      addr,
		Size:      uintptr(len(data)),
		Committed: true,
		Readable:  true,
		Writable:  true,
	}, data)
}

// MapRegion adds a region with explicit attributes. data may be shorter than
// info.Size; the rest is zero.
func (s *Space) MapRegion(info process.RegionInfo, data []byte) {
	if info.Size == 0 {
		info.Size = uintptr(len(data))
	}
	buf := make([]byte, info.Size)
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regions {
		if info.Base < r.info.Base+r.info.Size && r.info.Base < info.Base+info.Size {
			panic(fmt.Sprintf("processtest: region 0x%X overlaps 0x%X", info.Base, r.info.Base))
		}
	}
	s.regions = append(s.regions, &region{info: info, data: buf})
	sort.Slice(s.regions, func(i, j int) bool {
		return s.regions[i].info.Base < s.regions[j].info.Base
	})
}

// FailReads makes every read of the region containing addr fail with err.
func (s *Space) FailReads(addr uintptr, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.find(addr); r != nil {
		r.readErr = err
	}
}

// FailWrites makes every later write fail with err. A nil err clears it.
func (s *Space) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Exit simulates the target going away: every later access fails.
func (s *Space) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exited = true
}

// Reads returns the start address of every Read call so far, failed ones included.
func (s *Space) Reads() []uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uintptr, len(s.reads))
	copy(out, s.reads)
	return out
}

// Writes returns the number of successful writes.
func (s *Space) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Peek copies n bytes at addr without recording a read. It panics if the range is unmapped.
func (s *Space) Peek(addr uintptr, n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(addr)
	if r == nil || addr+uintptr(n) > r.info.Base+r.info.Size {
		panic(fmt.Sprintf("processtest: peek 0x%X+%d unmapped", addr, n))
	}
	off := addr - r.info.Base
	out := make([]byte, n)
	copy(out, r.data[off:])
	return out
}

func (s *Space) BaseAddress() uintptr {
	return s.base
}

func (s *Space) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.exited
}

func (s *Space) Read(addr uintptr, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, addr)

	if s.exited {
		return ErrExited
	}
	r, off, err := s.span(addr, len(buf))
	if err != nil {
		return err
	}
	if !r.info.Scannable() || !r.info.Readable {
		return fmt.Errorf("read 0x%X: %w", addr, ErrNoAccess)
	}
	if r.readErr != nil {
		return r.readErr
	}
	copy(buf, r.data[off:])
	return nil
}

func (s *Space) Write(addr uintptr, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exited {
		return ErrExited
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	r, off, err := s.span(addr, len(buf))
	if err != nil {
		return err
	}
	if !r.info.Committed {
		return fmt.Errorf("write 0x%X: %w", addr, ErrNoAccess)
	}
	copy(r.data[off:], buf)
	s.writes++
	return nil
}

func (s *Space) QueryRegion(addr uintptr) (process.RegionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exited {
		return process.RegionInfo{}, ErrExited
	}
	if r := s.find(addr); r != nil {
		return r.info, nil
	}
	for _, r := range s.regions {
		if r.info.Base > addr {
			return process.RegionInfo{Base: addr, Size: r.info.Base - addr}, nil
		}
	}
	return process.RegionInfo{}, fmt.Errorf("query 0x%X: %w", addr, ErrUnmapped)
}

func (s *Space) find(addr uintptr) *region {
	for _, r := range s.regions {
		if addr >= r.info.Base && addr < r.info.Base+r.info.Size {
			return r
		}
	}
	return nil
}

func (s *Space) span(addr uintptr, n int) (*region, uintptr, error) {
	r := s.find(addr)
	if r == nil || addr+uintptr(n) > r.info.Base+r.info.Size {
		return nil, 0, fmt.Errorf("access 0x%X+%d: %w", addr, n, ErrUnmapped)
	}
	return r, addr - r.info.Base, nil
}
