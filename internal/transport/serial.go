package transport

import (
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// Serial talks to a printer through a serial device node: an RFCOMM channel
// bound with `rfcomm bind`, or the COM port Windows assigns to a paired SPP
// device. The baud settings are ignored by RFCOMM bindings but required by
// the port API.
type Serial struct {
	Port string // e.g. "/dev/rfcomm0" or "COM5"

	mu   sync.Mutex
	port serial.Port
}

func NewSerial(port string) *Serial {
	return &Serial{Port: port}
}

func (t *Serial) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(t.Port, mode)
	if err != nil {
		return fmt.Errorf("open %s (%v): %w", t.Port, err, ErrNoDevice)
	}
	if err := port.SetReadTimeout(trxTimeout); err != nil {
		port.Close()
		return fmt.Errorf("Couldn't set read timeout on %s:\n%w", t.Port, err)
	}
	t.port = port
	return nil
}

func (t *Serial) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return 0, ErrNotConnected
	}
	return writeChunked(t.port.Write, p, len(p))
}

// Read performs one read bounded by the port's read timeout. The port API
// signals an elapsed timeout as a zero-byte read.
func (t *Serial) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return 0, ErrNotConnected
	}
	n, err := t.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("serial read: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("serial read: %w", ErrIOTimeout)
	}
	return n, nil
}

func (t *Serial) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}
