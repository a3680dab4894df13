package core

import (
	"fmt"
	"time"
)

// DriverOptions configures NewDriver. Zero values select the defaults.
type DriverOptions struct {
	// Reader is the PC/SC reader name, or a part of it.
	Reader string
	// Factory replaces the PC/SC context factory.
	Factory ContextFactory
	// Sleep replaces time.Sleep for deselect settle delays.
	Sleep func(time.Duration)
	// Sim configures the simulated reader.
	Sim SimOptions
}

// NewDriver creates the driver registered under name: "pcsc", "ufcoder" or
// "sim". The driver is not opened.
func NewDriver(name string, opts DriverOptions) (Driver, error) {
	switch name {
	case "pcsc":
		return NewPCSCDriver(opts), nil
	case "ufcoder":
		return newUFCoderDriver(opts)
	case "sim":
		return NewSimDriver(opts.Sim, opts.Sleep), nil
	default:
		return nil, fmt.Errorf("unknown driver %q: %w", name, StatusReaderNotSupported)
	}
}
