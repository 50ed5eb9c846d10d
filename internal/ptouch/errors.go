package ptouch

import (
	"errors"
	"strings"
)

var (
	// ErrProtocolTimeout means the printer never produced the status we
	// were waiting for within the bounded retries.
	ErrProtocolTimeout = errors.New("printer did not respond in time")

	// ErrInvalidState means an operation was invoked out of sequence,
	// like printing before Connect.
	ErrInvalidState = errors.New("operation not valid in current state")

	// ErrTurnedOff means the printer powered down mid-job.
	ErrTurnedOff = errors.New("printer turned off during printing")
)

// Error flag bits of status byte 8.
const (
	errNoMedia            = 0x01
	errCutterJam          = 0x04
	errWeakBatteries      = 0x08
	errHighVoltageAdapter = 0x40
)

// Error flag bits of status byte 9.
const (
	errWrongMedia  = 0x01
	errCoverOpen   = 0x10
	errOverheating = 0x20
)

// HardwareError is a decoded physical fault. Every set flag bit contributes
// one condition, in a fixed order, so simultaneous faults all surface.
type HardwareError struct {
	ErrorInformation1 byte
	ErrorInformation2 byte
	Conditions        []string
}

func newHardwareError(e1, e2 byte) *HardwareError {
	var msgs []string
	if e1&errNoMedia != 0 {
		msgs = append(msgs, "no media")
	}
	if e1&errCutterJam != 0 {
		msgs = append(msgs, "cutter jam")
	}
	if e1&errWeakBatteries != 0 {
		msgs = append(msgs, "low batteries")
	}
	if e1&errHighVoltageAdapter != 0 {
		msgs = append(msgs, "high-voltage adapter")
	}
	if e2&errWrongMedia != 0 {
		msgs = append(msgs, "wrong media")
	}
	if e2&errCoverOpen != 0 {
		msgs = append(msgs, "cover open")
	}
	if e2&errOverheating != 0 {
		msgs = append(msgs, "overheating")
	}
	return &HardwareError{ErrorInformation1: e1, ErrorInformation2: e2, Conditions: msgs}
}

func (e *HardwareError) Error() string {
	if len(e.Conditions) == 0 {
		return "unknown printer error"
	}
	return strings.Join(e.Conditions, " | ")
}
