package jcstorage

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SimplyPrint/jcstorage-demo/internal/core"
	"github.com/SimplyPrint/jcstorage-demo/internal/timing"
)

type fakeTransport struct {
	switchErr   error
	selectResp  []byte
	selectErr   error
	apduResp    core.Response
	apduErr     error
	calls       []string
	selectedAID []byte
	sentCmd     core.Command
	deselects   []time.Duration
}

func (f *fakeTransport) SwitchToStorageMode() error {
	f.calls = append(f.calls, "switch")
	return f.switchErr
}

func (f *fakeTransport) SelectByAID(aid []byte) ([]byte, error) {
	f.calls = append(f.calls, "select")
	f.selectedAID = aid
	return f.selectResp, f.selectErr
}

func (f *fakeTransport) TransceiveAPDU(cmd core.Command) (core.Response, error) {
	f.calls = append(f.calls, "transceive")
	f.sentCmd = cmd
	return f.apduResp, f.apduErr
}

func (f *fakeTransport) Deselect(settle time.Duration) {
	f.calls = append(f.calls, "deselect")
	f.deselects = append(f.deselects, settle)
}

// stepClock advances by step on every reading.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() timing.Instant {
	i := timing.At(c.now)
	c.now = c.now.Add(c.step)
	return i
}

func newTestSelector(tr *fakeTransport) (*Selector, *bytes.Buffer) {
	var out bytes.Buffer
	s := NewSelector(tr, &out, 0)
	s.clock = &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: 40 * time.Millisecond}
	return s, &out
}

func TestAID(t *testing.T) {
	assert.Equal(t, []byte{0xF0, 0x44, 0x4C, 0x6F, 0x67, 0x69, 0x63, 0x01, 0x01}, AID)
	assert.Len(t, AID, 9)
}

func TestSelectApplication_Success(t *testing.T) {
	tr := &fakeTransport{selectResp: []byte{0xDE, 0xAD}}
	s, out := newTestSelector(tr)

	var resp [core.MaxSelectionResponse]byte
	require.NoError(t, s.SelectApplication(AID, &resp))

	assert.Equal(t, []string{"switch", "select", "deselect"}, tr.calls)
	assert.Equal(t, AID, tr.selectedAID)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, tr.deselects)
	assert.Equal(t, byte(0xDE), resp[0])
	assert.Equal(t, byte(0xAD), resp[1])
	assert.Contains(t, out.String(), " Sending Select APDU")
}

func TestSelectApplication_SelectFails(t *testing.T) {
	tr := &fakeTransport{
		selectResp: []byte{0x01},
		selectErr:  core.StatusFromSW(0x6A, 0x82),
	}
	s, out := newTestSelector(tr)

	resp := [core.MaxSelectionResponse]byte{0xAA, 0xBB}
	err := s.SelectApplication(AID, &resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, core.StatusFromSW(0x6A, 0x82))
	assert.Equal(t, []string{"switch", "select", "deselect"}, tr.calls)
	assert.Equal(t, [core.MaxSelectionResponse]byte{0xAA, 0xBB}, resp, "response buffer untouched")
	assert.Contains(t, out.String(), " Error while selecting card application, status is: UFR_APDU_SW_6A82 (0xA6A82)")
}

func TestSelectApplication_SwitchFails(t *testing.T) {
	tr := &fakeTransport{switchErr: core.StatusNoCard}
	s, out := newTestSelector(tr)

	var resp [core.MaxSelectionResponse]byte
	err := s.SelectApplication(AID, &resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, core.StatusNoCard)
	assert.Equal(t, []string{"switch", "deselect"}, tr.calls, "no select after a failed mode switch")
	assert.Contains(t, out.String(), " Error while switching into ISO 14443-4 mode, status is: UFR_NO_CARD (0x08)")
	assert.NotContains(t, out.String(), "Sending Select APDU")
}

// Exactly one deselect per invocation, whichever step failed.
func TestSelectApplication_AlwaysOneDeselect(t *testing.T) {
	cases := []*fakeTransport{
		{},
		{switchErr: core.StatusTimeout},
		{selectErr: core.StatusAppNotSelected},
	}
	for _, tr := range cases {
		s, _ := newTestSelector(tr)
		var resp [core.MaxSelectionResponse]byte
		_ = s.SelectApplication(AID, &resp)
		assert.Len(t, tr.deselects, 1)
	}
}

func TestCheckStorageType_OK(t *testing.T) {
	tr := &fakeTransport{apduResp: core.Response{SW: [2]byte{0x90, 0x00}}}
	s, out := newTestSelector(tr)

	check, err := s.CheckStorageType()
	require.NoError(t, err)

	assert.True(t, check.IsStorage)
	assert.Equal(t, 9, check.AIDSize)
	assert.InDelta(t, 0.04, check.Elapsed, 1e-9)
	assert.Equal(t, []string{"switch", "transceive", "deselect"}, tr.calls)
	assert.Equal(t, core.Command{
		Class: 0x00, Instruction: 0xA4, P1: 0x04, P2: 0x00,
		Data: AID, Ne: 16, SendLe: true,
	}, tr.sentCmd)
	assert.Contains(t, out.String(), "Card is DL JC Storage Type")
	assert.Contains(t, out.String(), "aid size: 9\n")
	assert.Contains(t, out.String(), "Measured time is: 0.040000\n")
}

func TestCheckStorageType_StatusWords(t *testing.T) {
	tests := []struct {
		name     string
		sw       [2]byte
		expected bool
	}{
		{"9000", [2]byte{0x90, 0x00}, true},
		{"6A82", [2]byte{0x6A, 0x82}, false},
		{"6D00", [2]byte{0x6D, 0x00}, false},
		{"9001", [2]byte{0x90, 0x01}, false},
		{"0090", [2]byte{0x00, 0x90}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{apduResp: core.Response{SW: tt.sw}}
			s, out := newTestSelector(tr)

			assert.Equal(t, tt.expected, s.IsStorageType())
			if !tt.expected {
				assert.Contains(t, out.String(), "You can't use this card to read and write files")
			}
			assert.Len(t, tr.deselects, 1)
		})
	}
}

func TestCheckStorageType_TransceiveFails(t *testing.T) {
	tr := &fakeTransport{apduErr: core.StatusAPDUTransceiveError}
	s, out := newTestSelector(tr)

	check, err := s.CheckStorageType()
	require.Error(t, err)
	assert.False(t, check.IsStorage)
	assert.ErrorIs(t, err, core.StatusAPDUTransceiveError)
	assert.Len(t, tr.deselects, 1)
	assert.Contains(t, out.String(), "Error while selecting card application, status is: UFR_APDU_TRANSCEIVE_ERROR (0xAE)")
	assert.False(t, s.IsStorageType())
}

func TestCheckStorageType_SwitchFails(t *testing.T) {
	tr := &fakeTransport{switchErr: core.StatusUnsupportedCardType}
	s, _ := newTestSelector(tr)

	assert.False(t, s.IsStorageType())
	assert.Equal(t, []string{"switch", "deselect"}, tr.calls)
}

func TestRun_Operations(t *testing.T) {
	for _, op := range []Operation{OpWrite, OpFastRead, OpRead} {
		t.Run(op.String(), func(t *testing.T) {
			tr := &fakeTransport{}
			s, out := newTestSelector(tr)

			require.NoError(t, s.Run(op))
			assert.Contains(t, out.String(), "Operation: "+op.String())
			assert.Equal(t, AID, tr.selectedAID)
			assert.Len(t, tr.deselects, 1)
		})
	}
}

func TestRun_Failure(t *testing.T) {
	tr := &fakeTransport{selectErr: core.StatusAppNotSelected}
	s, _ := newTestSelector(tr)

	err := s.Run(OpRead)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read:")
	assert.ErrorIs(t, err, core.StatusAppNotSelected)
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "write", OpWrite.String())
	assert.Equal(t, "fast read", OpFastRead.String())
	assert.Equal(t, "read", OpRead.String())
	assert.Equal(t, "operation(7)", Operation(7).String())
}

func TestSelectorOnSimulatedReader(t *testing.T) {
	sim := core.NewSimDriver(core.SimOptions{Card: core.DefaultSimCard(AID)}, func(time.Duration) {})
	require.NoError(t, sim.Open())
	defer sim.Close()

	var out bytes.Buffer
	s := NewSelector(sim, &out, 0)

	var resp [core.MaxSelectionResponse]byte
	assert.NoError(t, s.SelectApplication(AID, &resp))
	assert.True(t, s.IsStorageType())

	err := s.SelectApplication([]byte{0xA0, 0x00, 0x00, 0x00, 0x03}, &resp)
	assert.Error(t, err)
}
