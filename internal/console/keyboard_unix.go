//go:build linux || darwin

package console

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

type termState struct {
	saved unix.Termios
}

// Open puts in into raw mode. Close restores it.
func Open(in *os.File) (*Keyboard, error) {
	k := &Keyboard{in: in, fd: int(in.Fd())}

	saved, err := unix.IoctlGetTermios(k.fd, ioctlGetTermios)
	if err != nil {
		if errors.Is(err, unix.ENOTTY) || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENODEV) {
			// pipe or file: nothing to configure
			return k, nil
		}
		return nil, err
	}

	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(k.fd, ioctlSetTermios, &raw); err != nil {
		return nil, err
	}

	k.state = &termState{saved: *saved}
	return k, nil
}

// Pending reports whether a key can be read without blocking.
func (k *Keyboard) Pending() (bool, error) {
	fds := []unix.PollFd{{Fd: int32(k.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0, nil
	}
}

// Close restores the terminal and discards unread input so it does not
// reach the shell prompt.
func (k *Keyboard) Close() error {
	if k.state == nil {
		return nil
	}
	err := unix.IoctlSetTermios(k.fd, ioctlSetTermiosFlush, &k.state.saved)
	k.state = nil
	return err
}
