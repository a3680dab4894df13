package depcheck

import (
	"errors"
	"fmt"

	"github.com/SimplyPrint/jcstorage-demo/internal/logging"
)

// ErrVersionTooOld is wrapped by every VersionError.
var ErrVersionTooOld = errors.New("dependency version too old")

// Component names a checked dependency.
type Component int

const (
	ComponentLibrary Component = iota
	ComponentFirmware
)

func (c Component) String() string {
	if c == ComponentFirmware {
		return "firmware"
	}
	return "library"
}

// VersionSource is the part of the reader driver the gate queries.
type VersionSource interface {
	LibraryVersion() uint32
	FirmwareVersion() (major, minor byte, err error)
	FirmwareBuild() (byte, error)
}

// Requirement is a minimum version that fails the gate only when enforced.
type Requirement struct {
	Minimum Triple
	Enforce bool
}

// Policy holds the library and firmware requirements.
type Policy struct {
	Library  Requirement
	Firmware Requirement
}

var (
	MinLibrary  = Triple{Major: 5, Minor: 0, Build: 6}
	MinFirmware = Triple{Major: 5, Minor: 0, Build: 19}
)

// DefaultPolicy returns the requirements for a driver. The uFR drivers
// enforce both minimums; PC/SC readers report unrelated version numbers,
// so nothing is enforced for them.
func DefaultPolicy(driver string) Policy {
	p := Policy{
		Library:  Requirement{Minimum: MinLibrary, Enforce: true},
		Firmware: Requirement{Minimum: MinFirmware, Enforce: true},
	}
	if driver == "pcsc" {
		p.Library.Enforce = false
		p.Firmware.Enforce = false
	}
	return p
}

// VersionError reports a dependency below its enforced minimum.
type VersionError struct {
	Component Component
	Found     Triple
	Required  Triple
}

func (e *VersionError) Error() string {
	if e.Component == ComponentFirmware {
		return fmt.Sprintf("Wrong uFR NFC reader firmware version (%s). Please update uFR firmware to at least %s version.",
			e.Found, e.Required)
	}
	return fmt.Sprintf("Wrong uFCoder library version (%s). Please update uFCoder library to at least %s version.",
		e.Found, e.Required)
}

func (e *VersionError) Unwrap() error { return ErrVersionTooOld }

// QueryError is a failed firmware query. It does not fail the gate.
type QueryError struct {
	Query string
	Err   error
}

func (e QueryError) Error() string {
	return fmt.Sprintf("Error while checking %s, status is: %v", e.Query, e.Err)
}

// Report is what the gate found.
type Report struct {
	Library         Triple
	Firmware        Triple
	FirmwareChecked bool
	QueryErrors     []QueryError
	// Outdated lists components below their minimum that were not enforced.
	Outdated []Component
}

// Check compares the library and firmware versions of src against policy.
// A nil error means the session may proceed.
//
// The library is checked first; when it fails the firmware is not queried.
// Firmware query failures are recorded and logged, and the comparison goes
// on with the values the driver returned.
func Check(src VersionSource, policy Policy) (Report, error) {
	var report Report

	report.Library = UnpackLibraryVersion(src.LibraryVersion())
	if report.Library.IsOlderThan(policy.Library.Minimum) {
		if policy.Library.Enforce {
			return report, &VersionError{
				Component: ComponentLibrary,
				Found:     report.Library,
				Required:  policy.Library.Minimum,
			}
		}
		report.Outdated = append(report.Outdated, ComponentLibrary)
		logging.Warn(logging.CatReader, "Library version below minimum", map[string]any{
			"found":    report.Library.String(),
			"required": policy.Library.Minimum.String(),
		})
	}

	major, minor, err := src.FirmwareVersion()
	if err != nil {
		report.addQueryError(policy.Firmware.Enforce, "firmware version", err)
	}
	build, err := src.FirmwareBuild()
	if err != nil {
		report.addQueryError(policy.Firmware.Enforce, "firmware build", err)
	}
	report.Firmware = Triple{Major: major, Minor: minor, Build: build}
	report.FirmwareChecked = true

	if report.Firmware.IsOlderThan(policy.Firmware.Minimum) {
		if policy.Firmware.Enforce {
			return report, &VersionError{
				Component: ComponentFirmware,
				Found:     report.Firmware,
				Required:  policy.Firmware.Minimum,
			}
		}
		report.Outdated = append(report.Outdated, ComponentFirmware)
		logging.Warn(logging.CatReader, "Firmware version below minimum", map[string]any{
			"found":    report.Firmware.String(),
			"required": policy.Firmware.Minimum.String(),
		})
	}

	return report, nil
}

func (r *Report) addQueryError(enforced bool, query string, err error) {
	r.QueryErrors = append(r.QueryErrors, QueryError{Query: query, Err: err})
	data := map[string]any{
		"query": query,
		"error": err.Error(),
	}
	if enforced {
		logging.Warn(logging.CatReader, "Firmware query failed", data)
		return
	}
	logging.Debug(logging.CatReader, "Firmware query failed", data)
}
