//go:build ufcoder

package core

/*
#cgo LDFLAGS: -luFCoder
#include <stdint.h>
#include <uFCoder.h>
*/
import "C"

import (
	"time"
	"unsafe"
)

// UFCoderDriver drives a d-logic uFR reader through the native uFCoder
// library. The library keeps one global reader handle, so at most one
// UFCoderDriver may be open per process.
type UFCoderDriver struct {
	open bool
}

func newUFCoderDriver(DriverOptions) (Driver, error) {
	return &UFCoderDriver{}, nil
}

func ufrStatus(status C.UFR_STATUS) error {
	if status == C.UFR_OK {
		return nil
	}
	return Status(status)
}

func (d *UFCoderDriver) Name() string { return "ufcoder" }

func (d *UFCoderDriver) Open() error {
	if d.open {
		return StatusReaderOpeningError
	}
	if err := ufrStatus(C.ReaderOpen()); err != nil {
		return err
	}
	d.open = true
	return nil
}

func (d *UFCoderDriver) Close() error {
	if !d.open {
		return StatusReaderPortNotOpen
	}
	d.open = false
	return ufrStatus(C.ReaderClose())
}

func (d *UFCoderDriver) Reset() error {
	return ufrStatus(C.ReaderReset())
}

func (d *UFCoderDriver) PollCardID() (CardIdentity, error) {
	var sak, size C.uint8_t
	var uid [MaxUIDLength]C.uint8_t
	if err := ufrStatus(C.GetCardIdEx(&sak, &uid[0], &size)); err != nil {
		return CardIdentity{}, err
	}
	n := int(size)
	if n > MaxUIDLength {
		n = MaxUIDLength
	}
	raw := make([]byte, n)
	for i := range raw {
		raw[i] = byte(uid[i])
	}
	return NewCardIdentity(byte(sak), raw)
}

// GetCardType asks the reader to classify the card in the field; sak is not
// needed by the uFR.
func (d *UFCoderDriver) GetCardType(sak byte) (CardType, error) {
	var cardType C.uint8_t
	if err := ufrStatus(C.GetDlogicCardType(&cardType)); err != nil {
		return CardTypeUnknown, err
	}
	return CardType(cardType), nil
}

func (d *UFCoderDriver) LibraryVersion() uint32 {
	return uint32(C.GetDllVersion())
}

func (d *UFCoderDriver) FirmwareVersion() (major, minor byte, err error) {
	var maj, mnr C.uint8_t
	err = ufrStatus(C.GetReaderFirmwareVersion(&maj, &mnr))
	return byte(maj), byte(mnr), err
}

func (d *UFCoderDriver) FirmwareBuild() (byte, error) {
	var build C.uint8_t
	err := ufrStatus(C.GetBuildNumber(&build))
	return byte(build), err
}

func (d *UFCoderDriver) SwitchToStorageMode() error {
	return ufrStatus(C.SetISO14443_4_DLStorage())
}

func (d *UFCoderDriver) SelectByAID(aid []byte) ([]byte, error) {
	if len(aid) == 0 || len(aid) > 16 {
		return nil, StatusParametersError
	}
	var resp [MaxSelectionResponse]C.uint8_t
	status := C.JCAppSelectByAid((*C.uint8_t)(unsafe.Pointer(&aid[0])), C.uint8_t(len(aid)), &resp[0])
	if err := ufrStatus(status); err != nil {
		return nil, err
	}
	out := make([]byte, MaxSelectionResponse)
	for i := range out {
		out[i] = byte(resp[i])
	}
	return out, nil
}

func (d *UFCoderDriver) TransceiveAPDU(cmd Command) (Response, error) {
	ne := cmd.Ne
	if ne <= 0 {
		ne = 256
	}
	in := make([]byte, ne)
	le := C.uint32_t(ne)
	var sw [2]C.uint8_t

	var dataPtr *C.uint8_t
	if len(cmd.Data) > 0 {
		dataPtr = (*C.uint8_t)(unsafe.Pointer(&cmd.Data[0]))
	}
	var sendLe C.uint8_t
	if cmd.SendLe {
		sendLe = 1
	}

	status := C.APDUTransceive(
		C.uint8_t(cmd.Class), C.uint8_t(cmd.Instruction), C.uint8_t(cmd.P1), C.uint8_t(cmd.P2),
		dataPtr, C.uint32_t(len(cmd.Data)),
		(*C.uint8_t)(unsafe.Pointer(&in[0])), &le,
		sendLe, &sw[0],
	)
	if err := ufrStatus(status); err != nil {
		return Response{}, err
	}
	n := int(le)
	if n > len(in) {
		return Response{}, StatusBufferOverflow
	}
	return Response{Data: in[:n], SW: [2]byte{byte(sw[0]), byte(sw[1])}}, nil
}

// Deselect sends an ISO 14443-4 S(DESELECT) block. The uFR waits up to the
// settle time (capped at 255 ms) for the card to acknowledge.
func (d *UFCoderDriver) Deselect(settle time.Duration) {
	ms := settle.Milliseconds()
	if ms > 255 {
		ms = 255
	}
	C.s_block_deselect(C.uint8_t(ms))
}
