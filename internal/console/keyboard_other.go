//go:build !linux && !darwin && !windows

package console

import "os"

type termState struct{}

// Open is not supported on this platform.
func Open(in *os.File) (*Keyboard, error) {
	return nil, ErrUnsupported
}

func (k *Keyboard) Pending() (bool, error) { return false, ErrUnsupported }

func (k *Keyboard) Close() error { return nil }
