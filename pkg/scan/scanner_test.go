package scan

import (
	"errors"
	"testing"

	"mirage-tweaks/pkg/process"
	"mirage-tweaks/pkg/process/processtest"
)

var ejectSignature = MustParsePattern("F3 0F 10 25 ?? ?? ?? ?? F3 0F 10 6C 24 58")

var ejectBytes = []byte{0xF3, 0x0F, 0x10, 0x25, 0x11, 0x22, 0x33, 0x44, 0xF3, 0x0F, 0x10, 0x6C, 0x24, 0x58}

func regionWith(size, at int, content []byte) []byte {
	data := make([]byte, size)
	copy(data[at:], content)
	return data
}

func TestFindReportsAbsoluteAddress(t *testing.T) {
	space := processtest.New(0x1000)
	space.Map(0x1000, regionWith(0x100, 0x40, ejectBytes))

	m, err := Find(space, CodeSection, ejectSignature)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if m.Address() != 0x1040 {
		t.Fatalf("Address = 0x%X want 0x1040", m.Address())
	}
	if m.Region.Address != 0x1000 || len(m.Region.Data) != 0x100 {
		t.Fatalf("region = 0x%X+0x%X want the whole region", m.Region.Address, len(m.Region.Data))
	}
}

func TestFindSkipsInaccessibleRegions(t *testing.T) {
	space := processtest.New(0x1000)
	space.MapRegion(process.RegionInfo{Base: 0x1000, Size: 0x100, Readable: true}, regionWith(0x100, 0, ejectBytes))
	space.MapRegion(process.RegionInfo{Base: 0x2000, Size: 0x100, Committed: true, Readable: true, Guarded: true}, regionWith(0x100, 0, ejectBytes))
	space.Map(0x4000, regionWith(0x100, 0x10, ejectBytes))

	m, err := Find(space, HeapWide, ejectSignature)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if m.Address() != 0x4010 {
		t.Fatalf("Address = 0x%X want 0x4010", m.Address())
	}
	for _, addr := range space.Reads() {
		if addr < 0x4000 {
			t.Fatalf("read attempted at 0x%X inside a skipped region", addr)
		}
	}
}

func TestFindAttemptsExecuteOnlyRegion(t *testing.T) {
	space := processtest.New(0x1000)
	// Committed but not readable, like PAGE_EXECUTE: the read is tried and fails.
	space.MapRegion(process.RegionInfo{Base: 0x1000, Size: 0x100, Committed: true}, regionWith(0x100, 0, ejectBytes))
	space.Map(0x2000, regionWith(0x100, 0x10, ejectBytes))

	m, err := Find(space, CodeSection, ejectSignature)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if m.Address() != 0x2010 {
		t.Fatalf("Address = 0x%X want 0x2010", m.Address())
	}
	reads := space.Reads()
	if len(reads) != 2 || reads[0] != 0x1000 {
		t.Fatalf("reads = %#x want an attempt at 0x1000 first", reads)
	}
}

func TestFindContinuesPastReadFailure(t *testing.T) {
	space := processtest.New(0x1000)
	space.Map(0x1000, regionWith(0x100, 0, ejectBytes))
	space.Map(0x1100, regionWith(0x100, 0x20, ejectBytes))
	space.FailReads(0x1000, errors.New("partial copy"))

	m, err := Find(space, CodeSection, ejectSignature)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if m.Address() != 0x1120 {
		t.Fatalf("Address = 0x%X want 0x1120", m.Address())
	}
}

func TestFindFirstRegionWins(t *testing.T) {
	space := processtest.New(0x1000)
	space.Map(0x1000, regionWith(0x100, 0x80, ejectBytes))
	space.Map(0x1100, regionWith(0x100, 0x00, ejectBytes))

	m, err := Find(space, CodeSection, ejectSignature)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if m.Address() != 0x1080 {
		t.Fatalf("Address = 0x%X want 0x1080", m.Address())
	}
}

func TestFindOrigin(t *testing.T) {
	space := processtest.New(0x10000)
	space.Map(0x1000, regionWith(0x100, 0x8, ejectBytes))
	space.Map(0x10000, regionWith(0x100, 0x18, ejectBytes))

	code, err := Find(space, CodeSection, ejectSignature)
	if err != nil || code.Address() != 0x10018 {
		t.Fatalf("CodeSection = 0x%X err %v want 0x10018", code.Address(), err)
	}
	heap, err := Find(space, HeapWide, ejectSignature)
	if err != nil || heap.Address() != 0x1008 {
		t.Fatalf("HeapWide = 0x%X err %v want 0x1008", heap.Address(), err)
	}
}

func TestFindNotFound(t *testing.T) {
	space := processtest.New(0x1000)
	space.Map(0x1000, make([]byte, 0x100))
	space.Map(0x2000, make([]byte, 0x100))

	_, err := Find(space, HeapWide, ejectSignature)
	if !errors.Is(err, ErrPatternNotFound) {
		t.Fatalf("err = %v want ErrPatternNotFound", err)
	}
	if got := len(space.Reads()); got != 2 {
		t.Fatalf("reads = %d want 2, one per region", got)
	}
}

func TestFindBufferNotSharedWithLaterScans(t *testing.T) {
	space := processtest.New(0x1000)
	space.Map(0x1000, regionWith(0x100, 0x40, ejectBytes))

	first, err := Find(space, CodeSection, ejectSignature)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if _, err := Find(space, CodeSection, MustParsePattern("FF FF")); err == nil {
		t.Fatalf("expected second pattern to be absent")
	}
	if got := first.Region.Data[0x40]; got != 0xF3 {
		t.Fatalf("first match region changed: 0x%02X", got)
	}
}
