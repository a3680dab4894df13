package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusOK, "UFR_OK (0x00)"},
		{StatusNoCard, "UFR_NO_CARD (0x08)"},
		{StatusCanNotOpenReader, "UFR_CAN_NOT_OPEN_READER (0x52)"},
		{StatusAppNotSelected, "UFR_APDU_JC_APP_NOT_SELECTED (0x6000)"},
		{StatusFromSW(0x6A, 0x82), "UFR_APDU_SW_6A82 (0xA6A82)"},
		{Status(0x7777), "UNKNOWN_STATUS (0x7777)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
			assert.Equal(t, tt.expected, tt.status.Error())
		})
	}
}

func TestStatus_IsAPDUStatus(t *testing.T) {
	sw, ok := StatusFromSW(0x6A, 0x82).IsAPDUStatus()
	assert.True(t, ok)
	assert.Equal(t, uint16(0x6A82), sw)

	_, ok = StatusNoCard.IsAPDUStatus()
	assert.False(t, ok)
	_, ok = StatusAppNotSelected.IsAPDUStatus()
	assert.False(t, ok)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusOK, StatusOf(nil))
	assert.Equal(t, StatusNoCard, StatusOf(StatusNoCard))
	assert.Equal(t, StatusTimeout, StatusOf(fmt.Errorf("poll: %w", StatusTimeout)))
	assert.Equal(t, StatusCommunicationError, StatusOf(errors.New("broken pipe")))
}

func TestIsNoCardError(t *testing.T) {
	assert.True(t, IsNoCardError(StatusNoCard))
	assert.True(t, IsNoCardError(fmt.Errorf("get uid: %w", StatusNoCard)))
	assert.False(t, IsNoCardError(StatusTimeout))
	assert.False(t, IsNoCardError(nil))
}
