package core

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/ebfe/scard"
)

// MockSmartCard is a connected card answering the pseudo-APDUs and the
// SELECT command the PC/SC driver sends.
type MockSmartCard struct {
	atr          []byte
	uid          []byte
	firmware     []byte
	uidSW        []byte
	applications map[string][]byte
	err          error

	disconnected bool
	dispositions []uint32
	transmitted  [][]byte
}

// NewMockCard returns a card of the given kind with data read from real tags.
func NewMockCard(kind string) *MockSmartCard {
	c := &MockSmartCard{applications: map[string][]byte{}}
	switch kind {
	case "MIFARE Classic":
		c.atr = mustHex("3b8f8001804f0ca000000306030001000000006a")
		c.uid = mustHex("932bae0e")
	case "MIFARE Classic 4K":
		c.atr = mustHex("3b8f8001804f0ca0000003060300020000000069")
		c.uid = mustHex("a1b2c3d4")
	case "ISO 15693":
		c.atr = mustHex("3b8f8001804f0ca0000003060b00140000000077")
		c.uid = mustHex("80391566080104e0")
	case "NTAG215":
		c.atr = mustHex("3b8f8001804f0ca0000003060300030000000068")
		c.uid = mustHex("04635d6bc22a81")
	case "DL JC Storage":
		// ISO 14443-4 type A, no historical bytes from a storage profile
		c.atr = mustHex("3b8880010000000000718100f8")
		c.uid = mustHex("04a22b1a5c6880")
	default: // NTAG213
		c.atr = mustHex("3b8f8001804f0ca0000003060300030000000068")
		c.uid = mustHex("0442488a837280")
	}
	return c
}

// WithApplication installs an application answering SELECT with resp.
func (c *MockSmartCard) WithApplication(aid, resp []byte) *MockSmartCard {
	c.applications[hex.EncodeToString(aid)] = resp
	return c
}

// WithUIDStatus makes GET UID fail with the given status word.
func (c *MockSmartCard) WithUIDStatus(sw1, sw2 byte) *MockSmartCard {
	c.uidSW = []byte{sw1, sw2}
	return c
}

// WithFirmware sets the answer to the ACS firmware pseudo-APDU.
func (c *MockSmartCard) WithFirmware(firmware string) *MockSmartCard {
	c.firmware = []byte(firmware)
	return c
}

// WithError makes every call fail with msg.
func (c *MockSmartCard) WithError(msg string) *MockSmartCard {
	c.err = errors.New(msg)
	return c
}

func (c *MockSmartCard) Transmit(cmd []byte) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.disconnected {
		return nil, scard.ErrResetCard
	}
	c.transmitted = append(c.transmitted, append([]byte(nil), cmd...))

	switch {
	case bytes.Equal(cmd, apduGetUID):
		if c.uidSW != nil {
			return append([]byte(nil), c.uidSW...), nil
		}
		return append(append([]byte(nil), c.uid...), 0x90, 0x00), nil
	case bytes.Equal(cmd, apduGetFirmwareACS):
		if c.firmware == nil {
			return []byte{0x6A, 0x81}, nil
		}
		return append([]byte(nil), c.firmware...), nil
	case len(cmd) >= 5 && cmd[0] == 0x00 && cmd[1] == 0xA4 && cmd[2] == 0x04:
		lc := int(cmd[4])
		if len(cmd) < 5+lc {
			return []byte{0x67, 0x00}, nil
		}
		resp, ok := c.applications[hex.EncodeToString(cmd[5:5+lc])]
		if !ok {
			return []byte{0x6A, 0x82}, nil
		}
		return append(append([]byte(nil), resp...), 0x90, 0x00), nil
	default:
		return []byte{0x6D, 0x00}, nil
	}
}

func (c *MockSmartCard) Status() (SmartCardStatus, error) {
	if c.err != nil {
		return SmartCardStatus{}, c.err
	}
	return SmartCardStatus{State: uint32(scard.Present), Atr: c.atr}, nil
}

func (c *MockSmartCard) Disconnect(disposition uint32) error {
	c.disconnected = true
	c.dispositions = append(c.dispositions, disposition)
	return nil
}

// MockContext is a PC/SC context with a fixed set of readers and cards.
type MockContext struct {
	readers  []string
	cards    map[string]*MockSmartCard
	err      error
	connects int
	released bool
}

// NewMockContext returns a context with the readers seen on real hardware
// and no cards.
func NewMockContext() *MockContext {
	return &MockContext{
		readers: []string{
			"ACS ACR122U PICC Interface",
			"ACS ACR1552 1S CL Reader PICC",
			"ACS ACR1252 Dual Reader PICC",
		},
		cards: map[string]*MockSmartCard{},
	}
}

func (m *MockContext) WithReaders(readers []string) *MockContext {
	m.readers = readers
	return m
}

func (m *MockContext) WithCard(reader string, card *MockSmartCard) *MockContext {
	m.cards[reader] = card
	return m
}

func (m *MockContext) RemoveCard(reader string) {
	delete(m.cards, reader)
}

func (m *MockContext) WithError(msg string) *MockContext {
	m.err = errors.New(msg)
	return m
}

func (m *MockContext) ListReaders() ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.readers) == 0 {
		return nil, scard.ErrNoReadersAvailable
	}
	return m.readers, nil
}

func (m *MockContext) CardPresent(reader string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.cards[reader]
	return ok, nil
}

func (m *MockContext) Connect(reader string, shareMode uint32, protocol uint32) (SmartCard, error) {
	if m.err != nil {
		return nil, m.err
	}
	card, ok := m.cards[reader]
	if !ok {
		return nil, scard.ErrNoSmartcard
	}
	m.connects++
	card.disconnected = false
	return card, nil
}

func (m *MockContext) Release() error {
	m.released = true
	return nil
}

// mockFactory hands out one MockContext.
type mockFactory struct {
	ctx *MockContext
	err error
}

func (f mockFactory) EstablishContext() (SmartCardContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ctx, nil
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
