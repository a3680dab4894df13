// Package data holds the catalog of readers known to work with the example.
package data

import (
	_ "embed"
	"encoding/json"
	"strings"
)

// SupportedReader is a known-to-work reader and how to drive it.
type SupportedReader struct {
	Name         string           `json:"name"`
	Manufacturer string           `json:"manufacturer"`
	Description  string           `json:"description"`
	Drivers      []string         `json:"drivers"`
	Match        []string         `json:"match"` // PC/SC name fragments
	Capabilities ReaderCapability `json:"capabilities"`
	Limitations  []string         `json:"limitations"`
}

// ReaderCapability describes what the reader can do with a storage card.
type ReaderCapability struct {
	ISO14443_4   bool `json:"iso14443_4"`
	ExtendedAPDU bool `json:"extendedApdu"`
	Firmware     bool `json:"firmware"` // firmware version can be queried
}

// SupportedReadersData is the root structure of the JSON file
type SupportedReadersData struct {
	Readers []SupportedReader `json:"readers"`
}

//go:embed supported_readers.json
var supportedReadersJSON []byte

// GetSupportedReaders returns the list of known-to-work readers
func GetSupportedReaders() ([]SupportedReader, error) {
	var data SupportedReadersData
	if err := json.Unmarshal(supportedReadersJSON, &data); err != nil {
		return nil, err
	}
	return data.Readers, nil
}

// Lookup returns the catalog entry whose match fragments occur in the PC/SC
// reader name, ignoring case.
func Lookup(readerName string) (SupportedReader, bool) {
	readers, err := GetSupportedReaders()
	if err != nil {
		return SupportedReader{}, false
	}
	name := strings.ToUpper(readerName)
	for _, r := range readers {
		for _, m := range r.Match {
			if m != "" && strings.Contains(name, strings.ToUpper(m)) {
				return r, true
			}
		}
	}
	return SupportedReader{}, false
}
