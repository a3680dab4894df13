package core

import (
	"bytes"
	"fmt"
	"strings"
)

// MaxUIDLength is the longest UID a contactless card can report (triple size).
const MaxUIDLength = 10

// CardIdentity is the SAK and UID of the card currently in the field.
type CardIdentity struct {
	SAK       byte
	UID       [MaxUIDLength]byte
	UIDLength int
}

// NewCardIdentity builds an identity from a SAK and a UID of at most
// MaxUIDLength bytes.
func NewCardIdentity(sak byte, uid []byte) (CardIdentity, error) {
	if len(uid) > MaxUIDLength {
		return CardIdentity{}, fmt.Errorf("uid of %d bytes exceeds %d: %w", len(uid), MaxUIDLength, StatusBufferOverflow)
	}
	id := CardIdentity{SAK: sak, UIDLength: len(uid)}
	copy(id.UID[:], uid)
	return id, nil
}

// UIDBytes returns the significant UID bytes.
func (c CardIdentity) UIDBytes() []byte {
	return c.UID[:c.UIDLength]
}

// Equal compares SAK, UID length and the significant UID bytes.
func (c CardIdentity) Equal(other CardIdentity) bool {
	return c.SAK == other.SAK &&
		c.UIDLength == other.UIDLength &&
		bytes.Equal(c.UIDBytes(), other.UIDBytes())
}

// UIDString formats the UID as colon separated upper-case hex, e.g. "04:01:02:03".
func (c CardIdentity) UIDString() string {
	return FormatHex(c.UIDBytes(), ":")
}

func (c CardIdentity) String() string {
	return fmt.Sprintf("sak=0x%02X uid[%d]=%s", c.SAK, c.UIDLength, c.UIDString())
}

// FormatHex prints data as upper-case hex bytes joined by sep.
func FormatHex(data []byte, sep string) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, sep)
}

// CardType is the vendor card type classification reported by the reader.
type CardType byte

const (
	CardTypeUnknown             CardType = 0x00
	CardTypeUltralight          CardType = 0x01
	CardTypeUltralightC         CardType = 0x04
	CardTypeNTAG213             CardType = 0x08
	CardTypeNTAG215             CardType = 0x09
	CardTypeNTAG216             CardType = 0x0A
	CardTypeMifareMini          CardType = 0x20
	CardTypeMifareClassic1K     CardType = 0x21
	CardTypeMifareClassic4K     CardType = 0x22
	CardTypeGenericISO14443_4   CardType = 0x40
	CardTypeGenericISO14443_4_B CardType = 0x41
)

var cardTypeNames = map[CardType]string{
	CardTypeUnknown:             "TAG_UNKNOWN",
	CardTypeUltralight:          "DL_MIFARE_ULTRALIGHT",
	CardTypeUltralightC:         "DL_MIFARE_ULTRALIGHT_C",
	CardTypeNTAG213:             "DL_NTAG_213",
	CardTypeNTAG215:             "DL_NTAG_215",
	CardTypeNTAG216:             "DL_NTAG_216",
	CardTypeMifareMini:          "DL_MIFARE_MINI",
	CardTypeMifareClassic1K:     "DL_MIFARE_CLASSIC_1K",
	CardTypeMifareClassic4K:     "DL_MIFARE_CLASSIC_4K",
	CardTypeGenericISO14443_4:   "DL_GENERIC_ISO14443_4",
	CardTypeGenericISO14443_4_B: "DL_GENERIC_ISO14443_4_TYPE_B",
}

func (t CardType) String() string {
	if name, ok := cardTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_CARD_TYPE_0x%02X", byte(t))
}

// CardTypeFromSAK classifies a card by its SAK byte alone. Drivers without a
// vendor classification command use this.
func CardTypeFromSAK(sak byte) CardType {
	switch {
	case sak == 0x09:
		return CardTypeMifareMini
	case sak == 0x08 || sak == 0x88:
		return CardTypeMifareClassic1K
	case sak == 0x18:
		return CardTypeMifareClassic4K
	case sak == 0x00:
		return CardTypeUltralight
	case sak&0x20 != 0:
		return CardTypeGenericISO14443_4
	default:
		return CardTypeUnknown
	}
}

// SupportsISO14443_4 reports whether the SAK announces ISO 14443-4 compliance.
func SupportsISO14443_4(sak byte) bool {
	return sak&0x20 != 0
}

// PC/SC part 3 ATR for storage cards:
// 3B 8F 80 01 80 4F 0C A0 00 00 03 06 SS NN NN 00 00 00 00 TCK
var pcscStorageATRPrefix = []byte{0x3B, 0x8F, 0x80, 0x01, 0x80, 0x4F, 0x0C, 0xA0, 0x00, 0x00, 0x03, 0x06}

const pcscStandardISO14443AP3 = 0x03

// sakFromATR derives the SAK a PC/SC reader hides behind the ATR it
// synthesizes for contactless cards.
func sakFromATR(atr []byte) byte {
	if len(atr) < 15 || !bytes.HasPrefix(atr, pcscStorageATRPrefix) {
		// not a storage card ATR: the reader activated ISO 14443-4
		return 0x20
	}
	if atr[12] != pcscStandardISO14443AP3 {
		return 0x00
	}
	switch uint16(atr[13])<<8 | uint16(atr[14]) {
	case 0x0001:
		return 0x08
	case 0x0002:
		return 0x18
	case 0x0026:
		return 0x09
	default:
		return 0x00
	}
}
