package scan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// DefaultFiller is the int3 byte MSVC pads between functions.
const DefaultFiller byte = 0xCC

const caveSize = 4

var (
	ErrCaveNotFound      = errors.New("code cave not found")
	ErrDisplacementRange = errors.New("displacement out of rel32 range")
)

// FindCave looks for 4 filler bytes after the instruction at instrAddr.
// Candidates are the absolute 4-aligned addresses from the end of the
// instruction on. Only region.Data is searched.
func FindCave(region Region, instrAddr uintptr, instrLen int, filler byte) (uintptr, error) {
	if instrLen <= 0 || !region.Contains(instrAddr, instrLen) {
		return 0, fmt.Errorf("instruction 0x%X+%d not inside region 0x%X+0x%X", instrAddr, instrLen, region.Address, len(region.Data))
	}

	for cave := alignUp(instrAddr+uintptr(instrLen), caveSize); ; cave += caveSize {
		if !region.Contains(cave, caveSize) {
			return 0, fmt.Errorf("%w: after 0x%X", ErrCaveNotFound, instrAddr)
		}
		off := cave - region.Address
		if isFiller(region.Data[off:off+caveSize], filler) {
			return cave, nil
		}
	}
}

func isFiller(window []byte, filler byte) bool {
	for _, b := range window {
		if b != filler {
			return false
		}
	}
	return true
}

func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

// Displacement is the rel32 operand that makes the instruction at instrAddr
// address target.
func Displacement(target, instrAddr uintptr, instrLen int) (int32, error) {
	d := int64(target) - int64(instrAddr) - int64(instrLen)
	if d < math.MinInt32 || d > math.MaxInt32 {
		return 0, fmt.Errorf("%w: 0x%X from 0x%X", ErrDisplacementRange, target, instrAddr)
	}
	return int32(d), nil
}

// EncodeRel32 appends disp little-endian to a copy of prefix.
func EncodeRel32(prefix []byte, disp int32) []byte {
	out := make([]byte, len(prefix), len(prefix)+4)
	copy(out, prefix)
	return binary.LittleEndian.AppendUint32(out, uint32(disp))
}
