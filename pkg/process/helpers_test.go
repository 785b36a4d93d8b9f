//go:build windows

package process

import (
	"os"
	"testing"

	"golang.org/x/sys/windows"
)

func openSelf(t *testing.T) *Process {
	t.Helper()
	p, err := Open(uint32(os.Getpid()))
	if err != nil {
		t.Fatalf("open self: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func alloc(t *testing.T, size uintptr, protect uint32) uintptr {
	t.Helper()
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, protect)
	if err != nil || addr == 0 {
		t.Fatalf("VirtualAlloc: %v", err)
	}
	t.Cleanup(func() { _ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE) })
	return addr
}

func allocRW(t *testing.T, size uintptr) uintptr {
	t.Helper()
	return alloc(t, size, windows.PAGE_READWRITE)
}

func selfExe(t *testing.T) string {
	t.Helper()
	procs, err := List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	pid := uint32(os.Getpid())
	for _, p := range procs {
		if p.PID == pid {
			return p.Exe
		}
	}
	t.Fatalf("current pid %d not found in process list", pid)
	return ""
}
