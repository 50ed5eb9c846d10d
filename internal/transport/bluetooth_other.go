//go:build !linux

package transport

import (
	"fmt"
	"runtime"
)

// Bluetooth RFCOMM sockets are Linux-only. On other systems, bind the
// printer's RFCOMM channel to a serial port (or pair it as an SPP COM port)
// and use the Serial transport instead.
type Bluetooth struct {
	Address string
	Channel uint8
}

func NewBluetooth(address string, channel uint8) *Bluetooth {
	if channel == 0 {
		channel = 1
	}
	return &Bluetooth{Address: address, Channel: channel}
}

func (t *Bluetooth) Connect() error {
	return fmt.Errorf("bluetooth rfcomm sockets are not supported on %s; use the serial transport with a bound port", runtime.GOOS)
}

func (t *Bluetooth) Write(p []byte) (int, error) {
	return 0, ErrNotConnected
}

func (t *Bluetooth) Read(p []byte) (int, error) {
	return 0, ErrNotConnected
}

func (t *Bluetooth) Close() error {
	return nil
}
