//go:build !ufcoder

package core

import "fmt"

func newUFCoderDriver(DriverOptions) (Driver, error) {
	return nil, fmt.Errorf("uFCoder driver not compiled in, rebuild with -tags ufcoder: %w", StatusReaderNotSupported)
}
