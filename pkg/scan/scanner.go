package scan

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"mirage-tweaks/pkg/process"
)

var ErrPatternNotFound = errors.New("pattern not found")

// Origin selects where a scan starts.
type Origin int

const (
	// CodeSection starts at the main module base.
	CodeSection Origin = iota
	// HeapWide starts at address zero.
	HeapWide
)

func (o Origin) String() string {
	switch o {
	case CodeSection:
		return "code"
	case HeapWide:
		return "heap"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

// Region is a snapshot of one memory region taken during a scan.
type Region struct {
	Address uintptr
	Data    []byte
}

func (r Region) End() uintptr {
	return r.Address + uintptr(len(r.Data))
}

func (r Region) Contains(addr uintptr, n int) bool {
	return addr >= r.Address && addr+uintptr(n) <= r.End()
}

// Match is a pattern hit. Region keeps the full snapshot so callers can
// inspect neighbouring bytes without another remote read.
type Match struct {
	Region Region
	Offset int
}

func (m Match) Address() uintptr {
	return m.Region.Address + uintptr(m.Offset)
}

func Find(t process.Target, origin Origin, p Pattern) (Match, error) {
	var start uintptr
	if origin == CodeSection {
		start = t.BaseAddress()
	}
	return FindFrom(t, start, p)
}

// FindFrom walks regions upward from start and returns the leftmost match in
// the first region that contains one. Uncommitted, no-access and guarded
// regions are never read; a failed read of any other region is logged and
// skipped.
func FindFrom(t process.Target, start uintptr, p Pattern) (Match, error) {
	var (
		buf     []byte
		addr    = start
		regions int
	)
	for {
		info, err := t.QueryRegion(addr)
		if err != nil || info.Size == 0 {
			break
		}

		if info.Scannable() {
			size := int(info.Size)
			if cap(buf) < size {
				buf = make([]byte, size)
			} else {
				buf = buf[:size]
			}

			regions++
			if err := t.Read(info.Base, buf); err != nil {
				log.WithField("region", fmt.Sprintf("0x%X", info.Base)).Warnf("skipping unreadable region: %v", err)
			} else if off := p.Index(buf); off >= 0 {
				log.WithFields(log.Fields{
					"pattern": p.String(),
					"addr":    fmt.Sprintf("0x%X", info.Base+uintptr(off)),
					"regions": regions,
				}).Debug("pattern found")
				return Match{Region: Region{Address: info.Base, Data: buf}, Offset: off}, nil
			}
		}

		next := info.Base + info.Size
		if next <= addr {
			break
		}
		addr = next
	}

	return Match{}, fmt.Errorf("%w: %s", ErrPatternNotFound, p)
}
