//go:build windows

package process

import (
	"errors"
	"fmt"
	"sync"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/windows"
)

const accessRights = windows.PROCESS_QUERY_INFORMATION |
	windows.PROCESS_VM_READ |
	windows.PROCESS_VM_WRITE |
	windows.PROCESS_VM_OPERATION

type Process struct {
	Handle windows.Handle
	PID    uint32
	Name   string
	Base   uintptr

	closeOnce sync.Once
	closeErr  error
}

var _ Target = (*Process)(nil)

func Open(pid uint32) (*Process, error) {
	h, err := windows.OpenProcess(accessRights, false, pid)
	if err != nil {
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return nil, fmt.Errorf("open pid %d: %w: %w", pid, ErrAccessDenied, err)
		}
		return nil, fmt.Errorf("open pid %d: %w", pid, err)
	}
	return &Process{Handle: h, PID: pid}, nil
}

// Close releases the OS handle. Later calls return the first result.
func (p *Process) Close() error {
	if p == nil || p.Handle == 0 {
		return nil
	}
	p.closeOnce.Do(func() {
		p.closeErr = windows.CloseHandle(p.Handle)
	})
	return p.closeErr
}

func (p *Process) BaseAddress() uintptr {
	return p.Base
}

// Alive reports whether the target pid still exists.
func (p *Process) Alive() bool {
	ok, err := gopsprocess.PidExists(int32(p.PID))
	return err == nil && ok
}
