package jcstorage

import (
	"fmt"
	"strings"

	"github.com/SimplyPrint/jcstorage-demo/internal/core"
)

// Operation is one of the file operations offered on the storage card. The
// payload exchange is not implemented; each operation selects the
// application and deselects.
type Operation int

const (
	OpWrite Operation = iota
	OpFastRead
	OpRead
)

func (o Operation) String() string {
	switch o {
	case OpWrite:
		return "write"
	case OpFastRead:
		return "fast read"
	case OpRead:
		return "read"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// Run prints the operation banner and selects the storage application.
func (s *Selector) Run(op Operation) error {
	fmt.Fprintln(s.out, separator)
	fmt.Fprintln(s.out, center("Operation: "+op.String(), len(separator)))
	fmt.Fprintln(s.out, separator)

	var resp [core.MaxSelectionResponse]byte
	if err := s.SelectApplication(AID, &resp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func center(text string, width int) string {
	pad := (width - len(text)) / 2
	if pad <= 0 {
		return text
	}
	return strings.Repeat(" ", pad) + text
}
