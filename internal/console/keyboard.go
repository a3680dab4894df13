// Package console reads single keystrokes without blocking and prints the
// operator menu.
package console

import (
	"errors"
	"os"
)

// KeyEscape quits the demo.
const KeyEscape byte = 0x1B

// ErrUnsupported is returned by Open on platforms without termios.
var ErrUnsupported = errors.New("console: raw keyboard input not supported on this platform")

// Keyboard is a terminal input in non-canonical, no-echo mode. When the input
// is not a terminal it is used as is, one byte per key.
type Keyboard struct {
	in    *os.File
	fd    int
	state *termState // nil when the input is not a terminal
}

// Raw reports whether the terminal was switched into raw mode.
func (k *Keyboard) Raw() bool {
	return k.state != nil
}

// ReadKey blocks until a key is available and returns it. Call Pending first
// to keep the loop responsive.
func (k *Keyboard) ReadKey() (byte, error) {
	var buf [1]byte
	for {
		n, err := k.in.Read(buf[:])
		if n == 1 {
			return buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
