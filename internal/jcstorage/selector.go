// Package jcstorage selects the DL JC Storage card application.
package jcstorage

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/SimplyPrint/jcstorage-demo/internal/core"
	"github.com/SimplyPrint/jcstorage-demo/internal/logging"
	"github.com/SimplyPrint/jcstorage-demo/internal/timing"
)

// AID is the application identifier of the DL JC Storage applet.
var AID = []byte{0xF0, 'D', 'L', 'o', 'g', 'i', 'c', 0x01, 0x01}

// DefaultSettle is the wait after a deselect.
const DefaultSettle = 100 * time.Millisecond

const separator = " -------------------------------------------------------------------"

// Transport is the part of the reader driver the selector uses.
type Transport interface {
	SwitchToStorageMode() error
	SelectByAID(aid []byte) ([]byte, error)
	TransceiveAPDU(cmd core.Command) (core.Response, error)
	Deselect(settle time.Duration)
}

// Selector runs application selection against the card in the field and
// reports progress to an operator console.
type Selector struct {
	transport Transport
	out       io.Writer
	settle    time.Duration
	clock     timing.Clock
}

// NewSelector returns a selector writing operator messages to out. A zero
// settle selects DefaultSettle.
func NewSelector(transport Transport, out io.Writer, settle time.Duration) *Selector {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Selector{
		transport: transport,
		out:       out,
		settle:    settle,
		clock:     timing.System,
	}
}

// SelectApplication switches the card into ISO 14443-4 mode and selects aid.
// resp receives the selection response on success and is left untouched on
// failure. The card is deselected before returning, whatever the outcome.
func (s *Selector) SelectApplication(aid []byte, resp *[core.MaxSelectionResponse]byte) error {
	defer s.transport.Deselect(s.settle)

	if err := s.transport.SwitchToStorageMode(); err != nil {
		fmt.Fprintf(s.out, " Error while switching into ISO 14443-4 mode, status is: %s\n", core.StatusOf(err))
		return fmt.Errorf("switch to ISO 14443-4 mode: %w", err)
	}

	fmt.Fprintln(s.out, " Sending Select APDU")
	data, err := s.transport.SelectByAID(aid)
	if err != nil {
		fmt.Fprintf(s.out, " Error while selecting card application, status is: %s\n", core.StatusOf(err))
		return fmt.Errorf("select application %s: %w", core.FormatHex(aid, ""), err)
	}

	copy(resp[:], data)
	logging.Debug(logging.CatAPDU, "Application selected", map[string]any{
		"aid":      core.FormatHex(aid, ""),
		"response": core.FormatHex(data, " "),
	})
	return nil
}

// StorageCheck is the outcome of CheckStorageType.
type StorageCheck struct {
	IsStorage bool
	SW        [2]byte
	Response  []byte
	Elapsed   float64 // seconds spent in the transceive
	AIDSize   int
}

// CheckStorageType sends a raw SELECT for AID and reports whether the card
// answered 90 00. The card is deselected before returning.
func (s *Selector) CheckStorageType() (StorageCheck, error) {
	defer s.transport.Deselect(s.settle)

	check := StorageCheck{AIDSize: len(AID)}

	if err := s.transport.SwitchToStorageMode(); err != nil {
		fmt.Fprintf(s.out, " Error while switching into ISO 14443-4 mode, status is: %s\n", core.StatusOf(err))
		return check, fmt.Errorf("switch to ISO 14443-4 mode: %w", err)
	}

	fmt.Fprintln(s.out, separator)
	fmt.Fprintln(s.out, " Sending Select APDU")

	start := s.clock.Now()
	resp, err := s.transport.TransceiveAPDU(core.Command{
		Class:       0x00,
		Instruction: 0xA4,
		P1:          0x04,
		P2:          0x00,
		Data:        AID,
		Ne:          core.MaxSelectionResponse,
		SendLe:      true,
	})
	end := s.clock.Now()
	check.Elapsed = timing.ElapsedSeconds(start, end)

	if err != nil {
		fmt.Fprintf(s.out, " Error while selecting card application, status is: %s\n", core.StatusOf(err))
	} else {
		check.SW = resp.SW
		check.Response = resp.Data
		// SW1 SW2 read as a little-endian word: 90 00 is 0x0090
		check.IsStorage = binary.LittleEndian.Uint16(resp.SW[:]) == 0x0090

		fmt.Fprintln(s.out, separator)
		if check.IsStorage {
			fmt.Fprintln(s.out, " OK!                Card is DL JC Storage Type")
		} else {
			fmt.Fprintln(s.out, "           You can't use this card to read and write files")
		}
		fmt.Fprintln(s.out, separator)
	}

	fmt.Fprintf(s.out, "aid size: %d\n", check.AIDSize)
	fmt.Fprintf(s.out, "Measured time is: %f\n", check.Elapsed)

	if err != nil {
		return check, fmt.Errorf("storage type select: %w", err)
	}
	logging.Debug(logging.CatAPDU, "Storage type check", map[string]any{
		"sw":         core.FormatHex(check.SW[:], ""),
		"is_storage": check.IsStorage,
		"elapsed_s":  check.Elapsed,
	})
	return check, nil
}

// IsStorageType reports whether the card in the field carries the DL JC
// Storage application.
func (s *Selector) IsStorageType() bool {
	check, err := s.CheckStorageType()
	return err == nil && check.IsStorage
}
