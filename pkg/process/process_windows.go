//go:build windows

package process

import (
	"fmt"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// DefaultNames are the image names tried when the config names none.
var DefaultNames = []string{"ACMirage.exe", "ACMirage_plus.exe"}

type Info struct {
	PID       uint32
	ParentPID uint32
	Exe       string
}

func List() ([]Info, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snapshot, &entry); err != nil {
		return nil, err
	}

	processes := make([]Info, 0, 128)
	for {
		exe := windows.UTF16ToString(entry.ExeFile[:])
		processes = append(processes, Info{
			PID:       entry.ProcessID,
			ParentPID: entry.ParentProcessID,
			Exe:       exe,
		})

		if err := windows.Process32Next(snapshot, &entry); err != nil {
			if err == windows.ERROR_NO_MORE_FILES {
				break
			}
			return nil, err
		}
	}

	return processes, nil
}

// Attach opens the first running process whose image name equals one of
// names (case-sensitive) and resolves its main module base.
func Attach(names []string) (*Process, error) {
	procs, err := List()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	info, ok := match(procs, names)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, names)
	}

	p, err := Open(info.PID)
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", info.Exe, err)
	}
	p.Name = info.Exe

	base, err := moduleBase(info.PID)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("attach %s: %w: %w", info.Exe, ErrModule, err)
	}
	p.Base = base

	log.WithFields(log.Fields{
		"pid":  p.PID,
		"exe":  p.Name,
		"base": fmt.Sprintf("0x%X", p.Base),
	}).Info("attached")
	return p, nil
}

func match(procs []Info, names []string) (Info, bool) {
	for _, p := range procs {
		for _, name := range names {
			if p.Exe == name {
				return p, true
			}
		}
	}
	return Info{}, false
}

// moduleBase returns the load address of the first module in the pid's
// module list, which is the main executable.
func moduleBase(pid uint32) (uintptr, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Module32First(snapshot, &entry); err != nil {
		return 0, err
	}
	if entry.ModBaseAddr == 0 {
		return 0, fmt.Errorf("module %s has no base", windows.UTF16ToString(entry.Module[:]))
	}
	return entry.ModBaseAddr, nil
}
