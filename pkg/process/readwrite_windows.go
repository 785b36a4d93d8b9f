//go:build windows

package process

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

var procFlushInstructionCache = windows.NewLazySystemDLL("kernel32.dll").NewProc("FlushInstructionCache")

func (p *Process) Read(addr uintptr, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if err := p.readExact(addr, buf); err != nil {
		return fmt.Errorf("read 0x%X+%d: %w", addr, len(buf), err)
	}
	return nil
}

// Write copies buf into the target. Pages without write access (code) are
// made writable for the duration of the write and the instruction cache is
// flushed afterwards.
func (p *Process) Write(addr uintptr, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	err := p.writeExact(addr, buf)
	if err == nil {
		return nil
	}
	if perr := p.writeProtected(addr, buf); perr != nil {
		return fmt.Errorf("write 0x%X+%d: %w", addr, len(buf), err)
	}
	return nil
}

func (p *Process) writeProtected(addr uintptr, buf []byte) error {
	size := uintptr(len(buf))
	var old uint32
	if err := windows.VirtualProtectEx(p.Handle, addr, size, windows.PAGE_EXECUTE_READWRITE, &old); err != nil {
		return err
	}
	werr := p.writeExact(addr, buf)

	var ignored uint32
	if err := windows.VirtualProtectEx(p.Handle, addr, size, old, &ignored); err != nil {
		log.WithField("addr", fmt.Sprintf("0x%X", addr)).Warnf("restore protection 0x%X: %v", old, err)
	}
	if werr != nil {
		return werr
	}
	procFlushInstructionCache.Call(uintptr(p.Handle), addr, size)
	return nil
}

func (p *Process) readExact(addr uintptr, buf []byte) error {
	var read uintptr
	if err := windows.ReadProcessMemory(p.Handle, addr, &buf[0], uintptr(len(buf)), &read); err != nil {
		return err
	}
	if read != uintptr(len(buf)) {
		return fmt.Errorf("%w: %d of %d", ErrShortRead, read, len(buf))
	}
	return nil
}

func (p *Process) writeExact(addr uintptr, buf []byte) error {
	var written uintptr
	if err := windows.WriteProcessMemory(p.Handle, addr, &buf[0], uintptr(len(buf)), &written); err != nil {
		return err
	}
	if written != uintptr(len(buf)) {
		return fmt.Errorf("%w: %d of %d", ErrShortWrite, written, len(buf))
	}
	return nil
}
