package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/ebfe/scard"
	"github.com/status-im/keycard-go/apdu"

	"github.com/SimplyPrint/jcstorage-demo/internal/logging"
)

// Pseudo-APDUs understood by PC/SC contactless readers.
var (
	apduGetUID         = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}
	apduGetFirmwareACS = []byte{0xFF, 0x00, 0x48, 0x00, 0x00}
)

// MaxSelectionResponse is the size of the application selection response buffer.
const MaxSelectionResponse = 16

// PCSCDriver drives any PC/SC contactless reader. The card stays connected
// between polls; Deselect and Reset drop the connection so that the next poll
// reactivates the card.
type PCSCDriver struct {
	factory ContextFactory
	want    string
	sleep   func(time.Duration)

	ctx    SmartCardContext
	reader string
	card   SmartCard
	atr    []byte
}

// NewPCSCDriver creates a PC/SC driver. An empty reader name selects the
// first PICC reader found at Open.
func NewPCSCDriver(opts DriverOptions) *PCSCDriver {
	d := &PCSCDriver{
		factory: opts.Factory,
		want:    opts.Reader,
		sleep:   opts.Sleep,
	}
	if d.factory == nil {
		d.factory = DefaultContextFactory{}
	}
	if d.sleep == nil {
		d.sleep = time.Sleep
	}
	return d
}

func (d *PCSCDriver) Name() string { return "pcsc" }

// ReaderName returns the reader picked at Open.
func (d *PCSCDriver) ReaderName() string { return d.reader }

func (d *PCSCDriver) Open() error {
	if d.ctx != nil {
		return StatusReaderOpeningError
	}

	ctx, err := d.factory.EstablishContext()
	if err != nil {
		return fmt.Errorf("establish PC/SC context: %v: %w", err, StatusCanNotOpenReader)
	}

	names, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return fmt.Errorf("list readers: %v: %w", err, StatusCanNotOpenReader)
	}

	reader, ok := selectReader(names, d.want)
	if !ok {
		ctx.Release()
		if d.want != "" {
			return fmt.Errorf("reader %q not found: %w", d.want, StatusCanNotOpenReader)
		}
		return fmt.Errorf("no PICC reader found: %w", StatusCanNotOpenReader)
	}

	d.ctx = ctx
	d.reader = reader
	logging.Info(logging.CatReader, "PC/SC reader opened", map[string]any{
		"reader": reader,
	})
	return nil
}

func (d *PCSCDriver) Close() error {
	if d.ctx == nil {
		return StatusReaderPortNotOpen
	}
	d.disconnect(uint32(scard.LeaveCard))
	err := d.ctx.Release()
	d.ctx = nil
	d.reader = ""
	if err != nil {
		return fmt.Errorf("release PC/SC context: %v: %w", err, StatusCantCloseReader)
	}
	return nil
}

func (d *PCSCDriver) Reset() error {
	if d.ctx == nil {
		return StatusReaderPortNotOpen
	}
	d.disconnect(uint32(scard.ResetCard))
	return nil
}

func (d *PCSCDriver) PollCardID() (CardIdentity, error) {
	if d.ctx == nil {
		return CardIdentity{}, StatusReaderPortNotOpen
	}

	present, err := d.ctx.CardPresent(d.reader)
	if err != nil {
		return CardIdentity{}, fmt.Errorf("reader state: %v: %w", err, StatusCommunicationError)
	}
	if !present {
		d.disconnect(uint32(scard.LeaveCard))
		return CardIdentity{}, StatusNoCard
	}

	if err := d.connect(); err != nil {
		return CardIdentity{}, err
	}

	raw, err := d.card.Transmit(apduGetUID)
	if err != nil {
		// card left between the state check and the transmit
		d.disconnect(uint32(scard.LeaveCard))
		if isCardGone(err) {
			return CardIdentity{}, StatusNoCard
		}
		return CardIdentity{}, fmt.Errorf("get uid: %v: %w", err, StatusReadingError)
	}
	resp, err := apdu.ParseResponse(raw)
	if err != nil {
		return CardIdentity{}, fmt.Errorf("get uid: %v: %w", err, StatusReadingError)
	}
	if resp.Sw != 0x9000 {
		return CardIdentity{}, fmt.Errorf("get uid: %w", StatusFromSW(resp.Sw1, resp.Sw2))
	}

	return NewCardIdentity(sakFromATR(d.atr), resp.Data)
}

func (d *PCSCDriver) GetCardType(sak byte) (CardType, error) {
	if d.ctx == nil {
		return CardTypeUnknown, StatusReaderPortNotOpen
	}
	return CardTypeFromSAK(sak), nil
}

// LibraryVersion reports the version of this driver; PC/SC has no vendor
// library to query.
func (d *PCSCDriver) LibraryVersion() uint32 {
	return PackVersion(1, 0, 0)
}

// FirmwareVersion asks an ACS reader for its firmware string, e.g.
// "ACR122U215". It needs a card in the field.
func (d *PCSCDriver) FirmwareVersion() (major, minor byte, err error) {
	digits, err := d.firmwareDigits()
	if err != nil {
		return 0, 0, err
	}
	return digits[0], digits[1], nil
}

func (d *PCSCDriver) FirmwareBuild() (byte, error) {
	digits, err := d.firmwareDigits()
	if err != nil {
		return 0, err
	}
	return digits[2], nil
}

func (d *PCSCDriver) firmwareDigits() ([3]byte, error) {
	var digits [3]byte
	if d.ctx == nil {
		return digits, StatusReaderPortNotOpen
	}
	if err := d.connect(); err != nil {
		return digits, err
	}

	raw, err := d.card.Transmit(apduGetFirmwareACS)
	if err != nil {
		return digits, fmt.Errorf("get firmware: %v: %w", err, StatusCommunicationError)
	}
	// some readers append 90 00, others return the bare string
	if len(raw) >= 2 && raw[len(raw)-2] == 0x90 && raw[len(raw)-1] == 0x00 {
		raw = raw[:len(raw)-2]
	}
	if len(raw) < 3 {
		return digits, StatusCommandNotSupported
	}
	for i, c := range raw[len(raw)-3:] {
		if c < '0' || c > '9' {
			return digits, StatusCommandNotSupported
		}
		digits[i] = c - '0'
	}
	return digits, nil
}

// SwitchToStorageMode checks that the card in the field speaks ISO 14443-4.
// PC/SC readers activate the protocol layer themselves on connect.
func (d *PCSCDriver) SwitchToStorageMode() error {
	if d.ctx == nil {
		return StatusReaderPortNotOpen
	}
	if err := d.connect(); err != nil {
		return err
	}
	if sak := sakFromATR(d.atr); !SupportsISO14443_4(sak) {
		return fmt.Errorf("sak 0x%02X: %w", sak, StatusUnsupportedCardType)
	}
	return nil
}

func (d *PCSCDriver) SelectByAID(aid []byte) ([]byte, error) {
	resp, err := d.TransceiveAPDU(Command{
		Class:       0x00,
		Instruction: 0xA4,
		P1:          0x04,
		P2:          0x00,
		Data:        aid,
		Ne:          256,
		SendLe:      true,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusWord() != 0x9000 {
		return nil, StatusFromSW(resp.SW[0], resp.SW[1])
	}
	if len(resp.Data) > MaxSelectionResponse {
		resp.Data = resp.Data[:MaxSelectionResponse]
	}
	return resp.Data, nil
}

func (d *PCSCDriver) TransceiveAPDU(cmd Command) (Response, error) {
	if d.ctx == nil {
		return Response{}, StatusReaderPortNotOpen
	}
	if err := d.connect(); err != nil {
		return Response{}, err
	}

	c := apdu.NewCommand(cmd.Class, cmd.Instruction, cmd.P1, cmd.P2, cmd.Data)
	if cmd.SendLe {
		// Le 00 means 256
		c.SetLe(uint8(cmd.Ne))
	}
	raw, err := c.Serialize()
	if err != nil {
		return Response{}, fmt.Errorf("encode apdu: %v: %w", err, StatusParametersError)
	}

	logging.Debug(logging.CatAPDU, "C-APDU", map[string]any{
		"apdu": FormatHex(raw, " "),
	})
	out, err := d.card.Transmit(raw)
	if err != nil {
		if isCardGone(err) {
			d.disconnect(uint32(scard.LeaveCard))
		}
		return Response{}, fmt.Errorf("transmit: %v: %w", err, StatusAPDUTransceiveError)
	}
	logging.Debug(logging.CatAPDU, "R-APDU", map[string]any{
		"apdu": FormatHex(out, " "),
	})

	resp, err := apdu.ParseResponse(out)
	if err != nil {
		return Response{}, fmt.Errorf("decode response: %v: %w", err, StatusAPDUTransceiveError)
	}
	if cmd.Ne > 0 && len(resp.Data) > cmd.Ne {
		return Response{}, StatusBufferOverflow
	}
	return Response{Data: resp.Data, SW: [2]byte{resp.Sw1, resp.Sw2}}, nil
}

// Deselect resets the card so that it leaves the ISO 14443-4 state.
func (d *PCSCDriver) Deselect(settle time.Duration) {
	d.disconnect(uint32(scard.ResetCard))
	d.sleep(settle)
}

func (d *PCSCDriver) connect() error {
	if d.card != nil {
		return nil
	}
	card, err := d.ctx.Connect(d.reader, uint32(scard.ShareShared), uint32(scard.ProtocolAny))
	if err != nil {
		if isCardGone(err) {
			return StatusNoCard
		}
		return fmt.Errorf("connect %s: %v: %w", d.reader, err, StatusCommunicationError)
	}
	status, err := card.Status()
	if err != nil {
		card.Disconnect(uint32(scard.LeaveCard))
		return fmt.Errorf("card status: %v: %w", err, StatusCommunicationError)
	}
	d.card = card
	d.atr = status.Atr
	return nil
}

func (d *PCSCDriver) disconnect(disposition uint32) {
	if d.card == nil {
		return
	}
	if err := d.card.Disconnect(disposition); err != nil {
		logging.Debug(logging.CatReader, "Disconnect failed", map[string]any{
			"error": err.Error(),
		})
	}
	d.card = nil
	d.atr = nil
}

func isCardGone(err error) bool {
	return errors.Is(err, scard.ErrNoSmartcard) ||
		errors.Is(err, scard.ErrRemovedCard) ||
		errors.Is(err, scard.ErrUnpoweredCard) ||
		errors.Is(err, scard.ErrUnresponsiveCard) ||
		errors.Is(err, scard.ErrResetCard)
}
