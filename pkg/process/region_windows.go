//go:build windows

package process

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

func (p *Process) QueryRegion(addr uintptr) (RegionInfo, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQueryEx(p.Handle, addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return RegionInfo{}, fmt.Errorf("query 0x%X: %w", addr, err)
	}
	return classify(mbi), nil
}

func classify(mbi windows.MemoryBasicInformation) RegionInfo {
	return RegionInfo{
		Base:      mbi.BaseAddress,
		Size:      mbi.RegionSize,
		Committed: mbi.State == windows.MEM_COMMIT,
		Readable:  isReadable(mbi.Protect),
		Writable:  isWritable(mbi.Protect),
		Guarded:   mbi.Protect&windows.PAGE_GUARD != 0 || mbi.Protect&0xFF == windows.PAGE_NOACCESS,
	}
}

func isReadable(protect uint32) bool {
	switch protect & 0xFF { // mask out modifier flags
	case windows.PAGE_READONLY,
		windows.PAGE_READWRITE,
		windows.PAGE_WRITECOPY,
		windows.PAGE_EXECUTE_READ,
		windows.PAGE_EXECUTE_READWRITE,
		windows.PAGE_EXECUTE_WRITECOPY:
		return true
	default:
		return false
	}
}

func isWritable(protect uint32) bool {
	switch protect & 0xFF {
	case windows.PAGE_READWRITE,
		windows.PAGE_WRITECOPY,
		windows.PAGE_EXECUTE_READWRITE,
		windows.PAGE_EXECUTE_WRITECOPY:
		return true
	default:
		return false
	}
}
