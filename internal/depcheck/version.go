package depcheck

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Triple is a major.minor.build version as reported by the reader and its
// library.
type Triple struct {
	Major byte
	Minor byte
	Build byte
}

var tripleRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// ParseTriple parses "5.0.19" or "v5.0.19". Each part must fit in a byte.
func ParseTriple(s string) (Triple, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")

	matches := tripleRe.FindStringSubmatch(s)
	if matches == nil {
		return Triple{}, fmt.Errorf("invalid version %q, want major.minor.build", s)
	}

	var parts [3]byte
	for i, m := range matches[1:] {
		n, err := strconv.ParseUint(m, 10, 8)
		if err != nil {
			return Triple{}, fmt.Errorf("invalid version %q: part %q out of range", s, m)
		}
		parts[i] = byte(n)
	}
	return Triple{Major: parts[0], Minor: parts[1], Build: parts[2]}, nil
}

// UnpackLibraryVersion splits a packed library version: major is the lowest
// byte, then minor, then build.
func UnpackLibraryVersion(packed uint32) Triple {
	return Triple{
		Major: byte(packed),
		Minor: byte(packed >> 8),
		Build: byte(packed >> 16),
	}
}

// Compare returns:
//
//	-1 if v < other
//	 0 if v == other
//	 1 if v > other
func (v Triple) Compare(other Triple) int {
	if v.Major != other.Major {
		if v.Major < other.Major {
			return -1
		}
		return 1
	}
	if v.Minor != other.Minor {
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	}
	if v.Build != other.Build {
		if v.Build < other.Build {
			return -1
		}
		return 1
	}
	return 0
}

// IsOlderThan returns true if v is older than other (i.e., other is newer)
func (v Triple) IsOlderThan(other Triple) bool {
	return v.Compare(other) < 0
}

// String returns the version as a string
func (v Triple) String() string {
	return strconv.Itoa(int(v.Major)) + "." + strconv.Itoa(int(v.Minor)) + "." + strconv.Itoa(int(v.Build))
}

// Set lets a Triple be used as a command line flag value.
func (v *Triple) Set(s string) error {
	t, err := ParseTriple(s)
	if err != nil {
		return err
	}
	*v = t
	return nil
}
