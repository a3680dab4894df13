package core

import (
	"encoding/hex"
	"strings"
	"time"
)

// SimCard describes the virtual card of a SimDriver.
type SimCard struct {
	SAK  byte
	UID  []byte
	Type CardType
	// Applications maps an upper-case hex AID to its selection response.
	Applications map[string][]byte
}

// DefaultSimCard returns an ISO 14443-4 card with the given applications
// installed, each answering the selection with an empty response.
func DefaultSimCard(aids ...[]byte) SimCard {
	card := SimCard{
		SAK:          0x20,
		UID:          []byte{0x04, 0xA2, 0x2B, 0x1A, 0x5C, 0x68, 0x80},
		Type:         CardTypeGenericISO14443_4,
		Applications: make(map[string][]byte, len(aids)),
	}
	for _, aid := range aids {
		card.Applications[aidKey(aid)] = []byte{}
	}
	return card
}

// SimOptions configures the card presence cycle of a SimDriver: the card is
// in the field for Present, then away for Absent, starting at Open.
type SimOptions struct {
	Card    SimCard
	Present time.Duration
	Absent  time.Duration
	Now     func() time.Time
}

// Simulated reader versions, equal to the uFCoder minimums.
var (
	SimLibraryVersion  = PackVersion(5, 0, 6)
	SimFirmwareVersion = [3]byte{5, 0, 19}
)

// SimDriver is an in-process reader for running the demo without hardware.
type SimDriver struct {
	opts  SimOptions
	sleep func(time.Duration)

	open        bool
	openedAt    time.Time
	storageMode bool
}

// NewSimDriver creates a simulated reader.
func NewSimDriver(opts SimOptions, sleep func(time.Duration)) *SimDriver {
	if opts.Present <= 0 {
		opts.Present = 5 * time.Second
	}
	if opts.Absent < 0 {
		opts.Absent = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Card.UID == nil {
		opts.Card = DefaultSimCard()
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &SimDriver{opts: opts, sleep: sleep}
}

func (d *SimDriver) Name() string { return "sim" }

func (d *SimDriver) Open() error {
	if d.open {
		return StatusReaderOpeningError
	}
	d.open = true
	d.openedAt = d.opts.Now()
	d.storageMode = false
	return nil
}

func (d *SimDriver) Close() error {
	if !d.open {
		return StatusReaderPortNotOpen
	}
	d.open = false
	d.storageMode = false
	return nil
}

func (d *SimDriver) Reset() error {
	if !d.open {
		return StatusReaderPortNotOpen
	}
	d.storageMode = false
	return nil
}

// cardInField reports whether the presence cycle currently has the card in.
func (d *SimDriver) cardInField() bool {
	if d.opts.Absent == 0 {
		return true
	}
	period := d.opts.Present + d.opts.Absent
	elapsed := d.opts.Now().Sub(d.openedAt) % period
	return elapsed < d.opts.Present
}

func (d *SimDriver) present() error {
	if !d.open {
		return StatusReaderPortNotOpen
	}
	if !d.cardInField() {
		d.storageMode = false
		return StatusNoCard
	}
	return nil
}

func (d *SimDriver) PollCardID() (CardIdentity, error) {
	if err := d.present(); err != nil {
		return CardIdentity{}, err
	}
	return NewCardIdentity(d.opts.Card.SAK, d.opts.Card.UID)
}

func (d *SimDriver) GetCardType(sak byte) (CardType, error) {
	if err := d.present(); err != nil {
		return CardTypeUnknown, err
	}
	if sak != d.opts.Card.SAK {
		return CardTypeFromSAK(sak), nil
	}
	return d.opts.Card.Type, nil
}

func (d *SimDriver) LibraryVersion() uint32 {
	return SimLibraryVersion
}

func (d *SimDriver) FirmwareVersion() (major, minor byte, err error) {
	if !d.open {
		return 0, 0, StatusReaderPortNotOpen
	}
	return SimFirmwareVersion[0], SimFirmwareVersion[1], nil
}

func (d *SimDriver) FirmwareBuild() (byte, error) {
	if !d.open {
		return 0, StatusReaderPortNotOpen
	}
	return SimFirmwareVersion[2], nil
}

func (d *SimDriver) SwitchToStorageMode() error {
	if err := d.present(); err != nil {
		return err
	}
	if !SupportsISO14443_4(d.opts.Card.SAK) {
		return StatusUnsupportedCardType
	}
	d.storageMode = true
	return nil
}

func (d *SimDriver) SelectByAID(aid []byte) ([]byte, error) {
	if err := d.present(); err != nil {
		return nil, err
	}
	if !d.storageMode {
		return nil, StatusISO14443_4Error
	}
	resp, ok := d.opts.Card.Applications[aidKey(aid)]
	if !ok {
		return nil, StatusFromSW(0x6A, 0x82)
	}
	if len(resp) > MaxSelectionResponse {
		resp = resp[:MaxSelectionResponse]
	}
	return append([]byte(nil), resp...), nil
}

func (d *SimDriver) TransceiveAPDU(cmd Command) (Response, error) {
	if err := d.present(); err != nil {
		return Response{}, err
	}
	if !d.storageMode {
		return Response{}, StatusISO14443_4Error
	}

	if cmd.Class != 0x00 || cmd.Instruction != 0xA4 {
		// instruction not supported
		return Response{SW: [2]byte{0x6D, 0x00}}, nil
	}
	if cmd.P1 != 0x04 {
		// incorrect P1/P2
		return Response{SW: [2]byte{0x6A, 0x86}}, nil
	}
	data, ok := d.opts.Card.Applications[aidKey(cmd.Data)]
	if !ok {
		// file or application not found
		return Response{SW: [2]byte{0x6A, 0x82}}, nil
	}
	if cmd.Ne > 0 && len(data) > cmd.Ne {
		return Response{}, StatusBufferOverflow
	}
	return Response{Data: append([]byte(nil), data...), SW: [2]byte{0x90, 0x00}}, nil
}

func (d *SimDriver) Deselect(settle time.Duration) {
	d.storageMode = false
	d.sleep(settle)
}

func aidKey(aid []byte) string {
	return strings.ToUpper(hex.EncodeToString(aid))
}
