package depcheck

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SimplyPrint/jcstorage-demo/internal/core"
)

type fakeSource struct {
	library     uint32
	firmware    Triple
	versionErr  error
	buildErr    error
	firmwareHit int
}

func (f *fakeSource) LibraryVersion() uint32 { return f.library }

func (f *fakeSource) FirmwareVersion() (major, minor byte, err error) {
	f.firmwareHit++
	if f.versionErr != nil {
		return 0, 0, f.versionErr
	}
	return f.firmware.Major, f.firmware.Minor, nil
}

func (f *fakeSource) FirmwareBuild() (byte, error) {
	if f.buildErr != nil {
		return 0, f.buildErr
	}
	return f.firmware.Build, nil
}

func enforced() Policy { return DefaultPolicy("ufcoder") }

func TestCheck_AtMinimum(t *testing.T) {
	src := &fakeSource{library: core.PackVersion(5, 0, 6), firmware: Triple{5, 0, 19}}

	report, err := Check(src, enforced())
	require.NoError(t, err)
	assert.Equal(t, Triple{5, 0, 6}, report.Library)
	assert.Equal(t, Triple{5, 0, 19}, report.Firmware)
	assert.True(t, report.FirmwareChecked)
	assert.Empty(t, report.QueryErrors)
	assert.Empty(t, report.Outdated)
}

func TestCheck_LibraryTooOld(t *testing.T) {
	src := &fakeSource{library: core.PackVersion(4, 9, 9), firmware: Triple{5, 0, 19}}

	report, err := Check(src, enforced())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionTooOld))
	assert.Equal(t,
		"Wrong uFCoder library version (4.9.9). Please update uFCoder library to at least 5.0.6 version.",
		err.Error())

	var verr *VersionError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ComponentLibrary, verr.Component)

	// firmware is not queried once the library failed
	assert.False(t, report.FirmwareChecked)
	assert.Equal(t, 0, src.firmwareHit)
}

func TestCheck_FirmwareTooOld(t *testing.T) {
	src := &fakeSource{library: core.PackVersion(5, 0, 6), firmware: Triple{5, 0, 18}}

	_, err := Check(src, enforced())
	require.Error(t, err)
	assert.Equal(t,
		"Wrong uFR NFC reader firmware version (5.0.18). Please update uFR firmware to at least 5.0.19 version.",
		err.Error())
}

func TestCheck_FirmwareQueryFailureProceeds(t *testing.T) {
	src := &fakeSource{
		library:    core.PackVersion(5, 0, 6),
		firmware:   Triple{5, 0, 19},
		versionErr: core.StatusTimeout,
	}

	report, err := Check(src, enforced())

	// the failed query is recorded, and the comparison continues with 0.0.19
	require.Len(t, report.QueryErrors, 1)
	assert.Equal(t, "firmware version", report.QueryErrors[0].Query)
	assert.Equal(t, "Error while checking firmware version, status is: UFR_TIMEOUT_ERR (0x90)",
		report.QueryErrors[0].Error())
	assert.Equal(t, Triple{0, 0, 19}, report.Firmware)
	assert.ErrorIs(t, err, ErrVersionTooOld)
}

func TestCheck_BothQueriesFailUnenforced(t *testing.T) {
	src := &fakeSource{
		library:    core.PackVersion(1, 0, 0),
		versionErr: core.StatusNoCard,
		buildErr:   core.StatusNoCard,
	}

	report, err := Check(src, DefaultPolicy("pcsc"))
	require.NoError(t, err)
	assert.Len(t, report.QueryErrors, 2)
	assert.Equal(t, []Component{ComponentLibrary, ComponentFirmware}, report.Outdated)
}

func TestCheck_IndependentEnforcement(t *testing.T) {
	tests := []struct {
		name            string
		library         uint32
		firmware        Triple
		enforceLibrary  bool
		enforceFirmware bool
		wantErr         bool
	}{
		{"old library enforced", core.PackVersion(5, 0, 5), Triple{5, 0, 19}, true, false, true},
		{"old library not enforced", core.PackVersion(5, 0, 5), Triple{5, 0, 19}, false, true, false},
		{"old firmware enforced", core.PackVersion(5, 0, 6), Triple{4, 9, 99}, false, true, true},
		{"old firmware not enforced", core.PackVersion(5, 0, 6), Triple{4, 9, 99}, true, false, false},
		{"both old, none enforced", core.PackVersion(1, 0, 0), Triple{1, 0, 0}, false, false, false},
		{"newer than minimum", core.PackVersion(6, 0, 0), Triple{5, 1, 0}, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := enforced()
			policy.Library.Enforce = tt.enforceLibrary
			policy.Firmware.Enforce = tt.enforceFirmware

			_, err := Check(&fakeSource{library: tt.library, firmware: tt.firmware}, policy)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestCheck_SimulatedReader(t *testing.T) {
	sim := core.NewSimDriver(core.SimOptions{}, nil)
	require.NoError(t, sim.Open())
	defer sim.Close()

	_, err := Check(sim, DefaultPolicy("sim"))
	assert.NoError(t, err)
}

func TestDefaultPolicy(t *testing.T) {
	for _, driver := range []string{"ufcoder", "sim"} {
		p := DefaultPolicy(driver)
		assert.True(t, p.Library.Enforce, driver)
		assert.True(t, p.Firmware.Enforce, driver)
		assert.Equal(t, MinLibrary, p.Library.Minimum)
		assert.Equal(t, MinFirmware, p.Firmware.Minimum)
	}

	p := DefaultPolicy("pcsc")
	assert.False(t, p.Library.Enforce)
	assert.False(t, p.Firmware.Enforce)
}
