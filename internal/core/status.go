package core

import (
	"errors"
	"fmt"
)

// Status is a reader driver status code. It implements error so that drivers
// can return it directly; StatusOK is never returned as an error.
type Status uint32

const (
	StatusOK                  Status = 0x00
	StatusCommunicationError  Status = 0x01
	StatusChecksumError       Status = 0x02
	StatusReadingError        Status = 0x03
	StatusWritingError        Status = 0x04
	StatusBufferOverflow      Status = 0x05
	StatusNoCard              Status = 0x08
	StatusCommandNotSupported Status = 0x09
	StatusAuthError           Status = 0x0E
	StatusParametersError     Status = 0x0F
	StatusMaxSizeExceeded     Status = 0x10
	StatusUnsupportedCardType Status = 0x11

	StatusCommunicationBreak Status = 0x50
	StatusNoMemoryError      Status = 0x51
	StatusCanNotOpenReader   Status = 0x52
	StatusReaderNotSupported Status = 0x53
	StatusReaderOpeningError Status = 0x54
	StatusReaderPortNotOpen  Status = 0x55
	StatusCantCloseReader    Status = 0x56

	StatusTimeout             Status = 0x90
	StatusAPDUTransceiveError Status = 0xAE

	StatusAppNotSelected      Status = 0x6000
	StatusAppBufferEmpty      Status = 0x6001
	StatusWrongSelectResponse Status = 0x6002
	StatusISO14443_4Error     Status = 0x6100 // ISO 14443-4 protocol layer failure

	// card status words are reported as 0x0A<SW1><SW2>
	statusAPDUSWTag Status = 0x0A0000
)

var statusNames = map[Status]string{
	StatusOK:                  "UFR_OK",
	StatusCommunicationError:  "UFR_COMMUNICATION_ERROR",
	StatusChecksumError:       "UFR_CHKSUM_ERROR",
	StatusReadingError:        "UFR_READING_ERROR",
	StatusWritingError:        "UFR_WRITING_ERROR",
	StatusBufferOverflow:      "UFR_BUFFER_OVERFLOW",
	StatusNoCard:              "UFR_NO_CARD",
	StatusCommandNotSupported: "UFR_COMMAND_NOT_SUPPORTED",
	StatusAuthError:           "UFR_AUTH_ERROR",
	StatusParametersError:     "UFR_PARAMETERS_ERROR",
	StatusMaxSizeExceeded:     "UFR_MAX_SIZE_EXCEEDED",
	StatusUnsupportedCardType: "UFR_UNSUPPORTED_CARD_TYPE",
	StatusCommunicationBreak:  "UFR_COMMUNICATION_BREAK",
	StatusNoMemoryError:       "UFR_NO_MEMORY_ERROR",
	StatusCanNotOpenReader:    "UFR_CAN_NOT_OPEN_READER",
	StatusReaderNotSupported:  "UFR_READER_NOT_SUPPORTED",
	StatusReaderOpeningError:  "UFR_READER_OPENING_ERROR",
	StatusReaderPortNotOpen:   "UFR_READER_PORT_NOT_OPENED",
	StatusCantCloseReader:     "UFR_CANT_CLOSE_READER_PORT",
	StatusTimeout:             "UFR_TIMEOUT_ERR",
	StatusAPDUTransceiveError: "UFR_APDU_TRANSCEIVE_ERROR",
	StatusAppNotSelected:      "UFR_APDU_JC_APP_NOT_SELECTED",
	StatusAppBufferEmpty:      "UFR_APDU_JC_APP_BUFF_EMPTY",
	StatusWrongSelectResponse: "UFR_APDU_WRONG_SELECT_RESPONSE",
	StatusISO14443_4Error:     "UFR_ISO14443_4_ERROR",
}

// StatusFromSW returns the status a driver reports when a card answered an
// APDU with a status word other than 90 00.
func StatusFromSW(sw1, sw2 byte) Status {
	return statusAPDUSWTag | Status(sw1)<<8 | Status(sw2)
}

// IsAPDUStatus reports whether s carries a card status word, and returns it.
func (s Status) IsAPDUStatus() (uint16, bool) {
	if s&^0xFFFF != statusAPDUSWTag {
		return 0, false
	}
	return uint16(s & 0xFFFF), true
}

// Name returns the symbolic name of the status.
func (s Status) Name() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	if sw, ok := s.IsAPDUStatus(); ok {
		return fmt.Sprintf("UFR_APDU_SW_%04X", sw)
	}
	return "UNKNOWN_STATUS"
}

// String returns the status name paired with its numeric code, e.g.
// "UFR_NO_CARD (0x08)".
func (s Status) String() string {
	return fmt.Sprintf("%s (0x%02X)", s.Name(), uint32(s))
}

func (s Status) Error() string {
	return s.String()
}

// StatusOf extracts the driver status from err. A nil error is StatusOK and
// an error without a wrapped Status is reported as a communication error.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusCommunicationError
}

// IsNoCardError returns true if the error indicates no card is in the field.
func IsNoCardError(err error) bool {
	return errors.Is(err, StatusNoCard)
}
