//go:build windows

package console

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procGetNumberOfConsoleInputEvents = kernel32.NewProc("GetNumberOfConsoleInputEvents")
	procPeekConsoleInputW             = kernel32.NewProc("PeekConsoleInputW")
	procReadConsoleInputW             = kernel32.NewProc("ReadConsoleInputW")
	procFlushConsoleInputBuffer       = kernel32.NewProc("FlushConsoleInputBuffer")
	procPeekNamedPipe                 = kernel32.NewProc("PeekNamedPipe")
)

const keyEvent = 0x0001

// inputRecord is an INPUT_RECORD holding a KEY_EVENT_RECORD.
type inputRecord struct {
	eventType       uint16
	_               uint16
	keyDown         int32
	repeatCount     uint16
	virtualKeyCode  uint16
	virtualScanCode uint16
	unicodeChar     uint16
	controlKeyState uint32
}

type termState struct {
	mode uint32
}

// Open turns off line input and echo on a console. Close restores them.
func Open(in *os.File) (*Keyboard, error) {
	k := &Keyboard{in: in, fd: int(in.Fd())}
	h := k.handle()

	var mode uint32
	if err := windows.GetConsoleMode(h, &mode); err != nil {
		// pipe or file: nothing to configure
		return k, nil
	}
	raw := mode &^ (windows.ENABLE_LINE_INPUT | windows.ENABLE_ECHO_INPUT)
	if err := windows.SetConsoleMode(h, raw); err != nil {
		return nil, err
	}

	k.state = &termState{mode: mode}
	return k, nil
}

func (k *Keyboard) handle() windows.Handle {
	return windows.Handle(k.in.Fd())
}

// Pending reports whether a key can be read without blocking. Console
// events other than key presses are discarded.
func (k *Keyboard) Pending() (bool, error) {
	if k.state == nil {
		return k.pipePending()
	}
	h := k.handle()
	for {
		var n uint32
		if r, _, err := procGetNumberOfConsoleInputEvents.Call(uintptr(h), uintptr(unsafe.Pointer(&n))); r == 0 {
			return false, err
		}
		if n == 0 {
			return false, nil
		}

		var rec inputRecord
		var read uint32
		if r, _, err := procPeekConsoleInputW.Call(uintptr(h), uintptr(unsafe.Pointer(&rec)), 1, uintptr(unsafe.Pointer(&read))); r == 0 {
			return false, err
		}
		if read == 1 && rec.eventType == keyEvent && rec.keyDown != 0 && rec.unicodeChar != 0 {
			return true, nil
		}
		// key up, mouse, focus or resize
		if r, _, err := procReadConsoleInputW.Call(uintptr(h), uintptr(unsafe.Pointer(&rec)), 1, uintptr(unsafe.Pointer(&read))); r == 0 {
			return false, err
		}
	}
}

// pipePending reports buffered bytes on a pipe. A closed writer counts as
// pending so the next ReadKey returns the error.
func (k *Keyboard) pipePending() (bool, error) {
	var avail uint32
	r, _, err := procPeekNamedPipe.Call(uintptr(k.handle()), 0, 0, 0, uintptr(unsafe.Pointer(&avail)), 0)
	if r == 0 {
		if errors.Is(err, windows.ERROR_BROKEN_PIPE) {
			return true, nil
		}
		return false, err
	}
	return avail > 0, nil
}

// Close restores the console mode and discards unread input so it does not
// reach the shell prompt.
func (k *Keyboard) Close() error {
	if k.state == nil {
		return nil
	}
	h := k.handle()
	procFlushConsoleInputBuffer.Call(uintptr(h))
	err := windows.SetConsoleMode(h, k.state.mode)
	k.state = nil
	return err
}
