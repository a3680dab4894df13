package core

import (
	"fmt"
	"strings"

	"github.com/SimplyPrint/jcstorage-demo/internal/logging"
)

// Reader represents a single PC/SC reader slot.
type Reader struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // "picc" for contactless readers, "sam" for SAM slots
}

// ListReaders returns the PC/SC readers, PICC slots first, SAM slots last.
// Always returns a non-nil slice (empty slice if no readers found).
func ListReaders() []Reader {
	return listReaders(DefaultContextFactory{})
}

func listReaders(factory ContextFactory) []Reader {
	ctx, err := factory.EstablishContext()
	if err != nil {
		// Log the error for diagnostics - this usually means pcscd is not running
		logging.Error(logging.CatReader, "Failed to establish PC/SC context - is pcscd running?", map[string]any{
			"error": err.Error(),
			"hint":  "On Linux, ensure pcscd is installed and running: sudo systemctl status pcscd",
		})
		return []Reader{}
	}
	defer ctx.Release()

	readerNames, err := ctx.ListReaders()
	if err != nil {
		// This is normal when no readers are connected, log at debug level
		logging.Debug(logging.CatReader, "No readers found", map[string]any{
			"error": err.Error(),
		})
		return []Reader{}
	}

	piccs := make([]Reader, 0, len(readerNames))
	sams := []Reader{}
	for _, name := range readerNames {
		r := Reader{Name: name, Type: detectReaderType(name)}
		if r.Type == "sam" {
			sams = append(sams, r)
			continue
		}
		piccs = append(piccs, r)
	}

	readers := append(piccs, sams...)
	for i := range readers {
		readers[i].ID = fmt.Sprintf("reader-%d", i)
	}
	return readers
}

// detectReaderType determines if a reader is a PICC or SAM interface based on its name.
func detectReaderType(name string) string {
	nameLower := strings.ToLower(name)

	// Check for SAM keywords
	if strings.Contains(nameLower, " sam") || strings.Contains(nameLower, "sam ") {
		return "sam"
	}

	// Check for PICC keywords
	if strings.Contains(nameLower, "picc") {
		return "picc"
	}

	// Default to PICC for readers without explicit type indicators
	// (like some ACR122U models that don't include "PICC" in the name)
	return "picc"
}

// selectReader picks the reader a session should use. An empty want selects
// the first PICC reader; otherwise an exact name wins over a case-insensitive
// substring match.
func selectReader(names []string, want string) (string, bool) {
	if want == "" {
		for _, name := range names {
			if detectReaderType(name) == "picc" {
				return name, true
			}
		}
		return "", false
	}

	for _, name := range names {
		if name == want {
			return name, true
		}
	}
	wantLower := strings.ToLower(want)
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), wantLower) {
			return name, true
		}
	}
	return "", false
}
