package process

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Attach when no running process has one of the candidate image names.
	ErrNotFound = errors.New("target process not found")

	// ErrAccessDenied is returned when the target exists but cannot be opened with the rights we need.
	ErrAccessDenied = errors.New("access denied")

	// ErrModule is returned when the main module base address of the target cannot be resolved.
	ErrModule = errors.New("main module not resolved")

	ErrShortRead  = errors.New("short read")
	ErrShortWrite = errors.New("short write")

	ErrNullPointer = errors.New("null pointer")
)

// Memory is exact-size access to another process's address space.
// Read and Write either transfer len(buf) bytes or fail.
type Memory interface {
	Read(addr uintptr, buf []byte) error
	Write(addr uintptr, buf []byte) error
}

// RegionInfo describes one virtual memory region as reported by the OS.
type RegionInfo struct {
	Base      uintptr
	Size      uintptr
	Committed bool
	Readable  bool
	Writable  bool
	Guarded   bool
}

// Scannable reports whether a read of the region is worth attempting. Only
// uncommitted, guard and no-access pages are ruled out up front; anything
// else is read and may still fail.
func (r RegionInfo) Scannable() bool {
	return r.Committed && !r.Guarded
}

func (r RegionInfo) String() string {
	return fmt.Sprintf("0x%X+0x%X committed=%t readable=%t guarded=%t", r.Base, r.Size, r.Committed, r.Readable, r.Guarded)
}

// Target is an attached process: raw memory access, region queries and the main module base.
type Target interface {
	Memory

	// QueryRegion describes the region containing addr, or the free range
	// starting at addr. It fails past the end of the address space.
	QueryRegion(addr uintptr) (RegionInfo, error)

	// BaseAddress is the load address of the main module. It never changes after attach.
	BaseAddress() uintptr
}

// Liveness is implemented by targets that can tell whether the process still runs.
type Liveness interface {
	Alive() bool
}

// ReadBytes reads n bytes at addr.
func ReadBytes(m Memory, addr uintptr, n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if err := m.Read(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// SizeOf returns the encoded size of a fixed-size value, or an error for types
// like slices, maps or uintptr that have no fixed little-endian image.
func SizeOf[T any]() (int, error) {
	var v T
	size := binary.Size(v)
	if size <= 0 {
		return 0, fmt.Errorf("%T is not a fixed-size value", v)
	}
	return size, nil
}

// Encode returns the little-endian byte image of v.
func Encode[T any](v T) ([]byte, error) {
	size, err := SizeOf[T]()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := binary.Encode(buf, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return buf, nil
}

// Decode is the inverse of Encode.
func Decode[T any](buf []byte) (T, error) {
	var v T
	if _, err := binary.Decode(buf, binary.LittleEndian, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

// ReadValue reads exactly sizeof(T) bytes at addr.
func ReadValue[T any](m Memory, addr uintptr) (T, error) {
	var zero T
	size, err := SizeOf[T]()
	if err != nil {
		return zero, err
	}
	buf, err := ReadBytes(m, addr, size)
	if err != nil {
		return zero, err
	}
	return Decode[T](buf)
}

// WriteValue writes exactly sizeof(T) bytes at addr.
func WriteValue[T any](m Memory, addr uintptr, v T) error {
	buf, err := Encode(v)
	if err != nil {
		return err
	}
	return m.Write(addr, buf)
}

// ReadPointer reads a 64-bit pointer at addr.
func ReadPointer(m Memory, addr uintptr) (uintptr, error) {
	v, err := ReadValue[uint64](m, addr)
	if err != nil {
		return 0, err
	}
	return uintptr(v), nil
}

// FollowPointers walks a pointer path. Every offset but the last is added to
// the current address and dereferenced; the last one is added to the final
// pointer. With no offsets it returns base.
func FollowPointers(m Memory, base uintptr, offsets ...uintptr) (uintptr, error) {
	addr := base
	for i := 0; i < len(offsets)-1; i++ {
		at := addr + offsets[i]
		ptr, err := ReadPointer(m, at)
		if err != nil {
			return 0, fmt.Errorf("pointer %d at 0x%X: %w", i, at, err)
		}
		if ptr == 0 {
			return 0, fmt.Errorf("pointer %d at 0x%X: %w", i, at, ErrNullPointer)
		}
		addr = ptr
	}
	if len(offsets) > 0 {
		addr += offsets[len(offsets)-1]
	}
	return addr, nil
}
