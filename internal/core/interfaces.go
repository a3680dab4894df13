package core

import "time"

// Driver is the reader driver call contract. A Driver is a single reader
// session: it is opened once, used from one goroutine, and closed once.
//
// Methods report failures as errors wrapping a Status; use StatusOf to
// recover the code.
type Driver interface {
	Name() string

	Open() error
	Close() error
	Reset() error

	// PollCardID returns StatusNoCard when the field is empty.
	PollCardID() (CardIdentity, error)
	GetCardType(sak byte) (CardType, error)

	// LibraryVersion is packed as major | minor<<8 | build<<16.
	LibraryVersion() uint32
	FirmwareVersion() (major, minor byte, err error)
	FirmwareBuild() (byte, error)

	SwitchToStorageMode() error
	SelectByAID(aid []byte) ([]byte, error)
	TransceiveAPDU(cmd Command) (Response, error)

	// Deselect releases the card and waits settle before returning.
	Deselect(settle time.Duration)
}

// Command is a command APDU.
type Command struct {
	Class       byte
	Instruction byte
	P1          byte
	P2          byte
	Data        []byte
	Ne          int  // expected response length, 256 for "any"
	SendLe      bool // append Le to the command
}

// Response is a response APDU split into data and status word.
type Response struct {
	Data []byte
	SW   [2]byte
}

// StatusWord returns SW1SW2 as a big-endian 16-bit value, e.g. 0x9000.
func (r Response) StatusWord() uint16 {
	return uint16(r.SW[0])<<8 | uint16(r.SW[1])
}

// PackVersion packs a version the way LibraryVersion reports it.
func PackVersion(major, minor, build byte) uint32 {
	return uint32(major) | uint32(minor)<<8 | uint32(build)<<16
}

// SmartCardContext represents a PC/SC context for listing readers
type SmartCardContext interface {
	ListReaders() ([]string, error)
	// CardPresent checks the reader state without blocking.
	CardPresent(reader string) (bool, error)
	Connect(reader string, shareMode uint32, protocol uint32) (SmartCard, error)
	Release() error
}

// SmartCard represents a connected smart card for transmitting commands
type SmartCard interface {
	Transmit(cmd []byte) ([]byte, error)
	Status() (SmartCardStatus, error)
	Disconnect(disposition uint32) error
}

// SmartCardStatus represents the status of a smart card
type SmartCardStatus struct {
	Reader         string
	State          uint32
	ActiveProtocol uint32
	Atr            []byte
}

// ContextFactory creates SmartCardContext instances
// This allows for dependency injection and mocking in tests
type ContextFactory interface {
	EstablishContext() (SmartCardContext, error)
}

// DefaultContextFactory is the production factory that uses real PC/SC
type DefaultContextFactory struct{}
