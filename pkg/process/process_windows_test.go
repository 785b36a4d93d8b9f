//go:build windows

package process

import (
	"errors"
	"os"
	"testing"
)

func TestListReturnsProcesses(t *testing.T) {
	procs, err := List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(procs) == 0 {
		t.Fatalf("expected at least one process")
	}
	selfPID := uint32(os.Getpid())
	foundSelf := false
	for _, p := range procs {
		if p.PID == selfPID {
			foundSelf = true
			break
		}
	}
	if !foundSelf {
		t.Fatalf("current pid %d not found in process list", selfPID)
	}
}

func TestAttachSelfResolvesBase(t *testing.T) {
	exe := selfExe(t)
	p, err := Attach([]string{"no-such-image.exe", exe})
	if err != nil {
		t.Fatalf("Attach(%q): %v", exe, err)
	}
	t.Cleanup(func() { _ = p.Close() })

	if p.Name != exe {
		t.Fatalf("Name = %q, want %q", p.Name, exe)
	}
	if p.BaseAddress() == 0 {
		t.Fatalf("expected non-zero module base")
	}
	// The PE image starts with the DOS header magic.
	mz, err := ReadBytes(p, p.BaseAddress(), 2)
	if err != nil {
		t.Fatalf("read image header: %v", err)
	}
	if string(mz) != "MZ" {
		t.Fatalf("image header = %q, want MZ", mz)
	}
}

func TestAttachNotFound(t *testing.T) {
	_, err := Attach([]string{"definitely-not-running-4b1d.exe"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Attach err = %v, want ErrNotFound", err)
	}
}

func TestMatchIsCaseSensitive(t *testing.T) {
	procs := []Info{{PID: 1, Exe: "acmirage.exe"}, {PID: 2, Exe: "ACMirage.exe"}}
	got, ok := match(procs, DefaultNames)
	if !ok || got.PID != 2 {
		t.Fatalf("match = %+v %v, want pid 2", got, ok)
	}
	if _, ok := match(procs, []string{"ACMIRAGE.EXE"}); ok {
		t.Fatalf("expected no match for different case")
	}
}
