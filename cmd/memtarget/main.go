//go:build windows

// memtarget is a stand-in for the game. It maps an executable page holding
// the eject height load and an int3 pad, then prints the value the load
// currently resolves to. Run mirage-tweaks with -process memtarget.exe.
package main

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/windows"

	"mirage-tweaks/pkg/process"
)

const (
	pageSize   = 0x1000
	instrAt    = 0x40
	instrLen   = 8
	slotAt     = 0x100
	refresh    = 500 * time.Millisecond
	defaultVal = float32(1.3)
)

// code is the load sequence XORed with codeKey, so the plain signature only
// ever exists inside the hosted page.
const codeKey = 0x5A

var code = [...]byte{
	0xF3 ^ codeKey, 0x0F ^ codeKey, 0x10 ^ codeKey, 0x25 ^ codeKey, // movss xmm4, [rip+disp32]
	codeKey, codeKey, codeKey, codeKey,
	0xF3 ^ codeKey, 0x0F ^ codeKey, 0x10 ^ codeKey, 0x6C ^ codeKey, 0x24 ^ codeKey, 0x58 ^ codeKey, // movss xmm5, [rsp+58h]
	0x90 ^ codeKey, 0x90 ^ codeKey,
}

type target struct {
	mu   sync.Mutex
	self *process.Process
	page uintptr
}

func main() {
	t, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "memtarget: %v\n", err)
		os.Exit(1)
	}
	defer t.self.Close()

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	go t.listenInput()

	for range ticker.C {
		t.render()
	}
}

func setup() (*target, error) {
	self, err := process.Open(uint32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	var base windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &base); err != nil {
		return nil, fmt.Errorf("module base: %w", err)
	}
	page, err := allocAbove(uintptr(base))
	if err != nil {
		return nil, err
	}
	t := &target{self: self, page: page}

	pad := make([]byte, pageSize)
	for i := range pad {
		pad[i] = 0xCC
	}
	if err := self.Write(page, pad); err != nil {
		return nil, err
	}
	if err := process.WriteValue(self, page+slotAt, defaultVal); err != nil {
		return nil, err
	}

	decoded := make([]byte, len(code))
	for i, b := range code {
		decoded[i] = b ^ codeKey
	}
	disp := int32(slotAt - (instrAt + instrLen))
	copy(decoded[4:8], []byte{byte(disp), byte(disp >> 8), byte(disp >> 16), byte(disp >> 24)})
	err = self.Write(page+instrAt, decoded)
	clear(decoded)
	if err != nil {
		return nil, err
	}

	var old uint32
	if err := windows.VirtualProtect(page, pageSize, windows.PAGE_EXECUTE_READ, &old); err != nil {
		return nil, fmt.Errorf("protect page: %w", err)
	}
	return t, nil
}

// allocAbove reserves the page above the module base so a code-section scan
// starting at the base reaches it.
func allocAbove(base uintptr) (uintptr, error) {
	for hint := base + 0x1000_0000; hint < base+0x8000_0000; hint += 0x100_0000 {
		addr, err := windows.VirtualAlloc(hint, pageSize, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
		if err == nil && addr != 0 {
			return addr, nil
		}
	}
	return 0, fmt.Errorf("no free page above 0x%X", base)
}

// effective decodes the rip-relative operand the way the CPU would.
func (t *target) effective() (addr uintptr, value float32, err error) {
	disp, err := process.ReadValue[int32](t.self, t.page+instrAt+4)
	if err != nil {
		return 0, 0, err
	}
	addr = uintptr(int64(t.page+instrAt+instrLen) + int64(disp))
	value, err = process.ReadValue[float32](t.self, addr)
	return addr, value, err
}

func (t *target) listenInput() {
	reader := bufio.NewReader(os.Stdin)
	for {
		ch, err := reader.ReadByte()
		if err != nil {
			return
		}
		var delta float32
		switch ch {
		case '+':
			delta = 0.1
		case '-':
			delta = -0.1
		default:
			continue
		}
		t.mu.Lock()
		v, err := process.ReadValue[float32](t.self, t.page+slotAt)
		if err == nil {
			err = process.WriteValue(t.self, t.page+slotAt, v+delta)
		}
		t.mu.Unlock()
		if err != nil {
			fmt.Fprintf(os.Stderr, "adjust: %v\n", err)
		}
	}
}

func (t *target) render() {
	t.mu.Lock()
	addr, value, err := t.effective()
	slot, _ := process.ReadValue[float32](t.self, t.page+slotAt)
	t.mu.Unlock()

	fmt.Print("\033[H\033[2J") // clear screen for refreshed view
	fmt.Println("mirage-tweaks test target (Ctrl+C to exit; +/- to change the built-in value, press Enter after key on Windows)")
	fmt.Println()
	fmt.Printf("pid:          %d\n", os.Getpid())
	fmt.Printf("code page:    0x%X\n", t.page)
	fmt.Printf("instruction:  0x%X\n", t.page+instrAt)
	fmt.Printf("built-in:     %.2f at 0x%X\n", slot, t.page+slotAt)
	if err != nil {
		fmt.Printf("eject height: read error: %v\n", err)
		return
	}
	state := "built-in"
	if addr != t.page+slotAt {
		state = "patched"
	}
	fmt.Printf("eject height: %.2f from 0x%X (%s)\n", value, addr, state)
}
