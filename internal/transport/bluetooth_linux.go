//go:build linux

package transport

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Bluetooth talks to a printer over a Bluetooth Classic RFCOMM stream
// socket. PT printers expose their raster channel via the serial port
// profile, channel 1 unless the device says otherwise.
type Bluetooth struct {
	Address string // colon-separated MAC, e.g. "A0:66:10:CA:FE:01"
	Channel uint8

	mu sync.Mutex
	fd int
}

func NewBluetooth(address string, channel uint8) *Bluetooth {
	if channel == 0 {
		channel = 1
	}
	return &Bluetooth{Address: address, Channel: channel, fd: -1}
}

func (t *Bluetooth) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd >= 0 {
		return nil
	}

	addr, err := parseAddress(t.Address)
	if err != nil {
		return err
	}
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM)
	if err != nil {
		return fmt.Errorf("rfcomm socket: %w", err)
	}
	tv := unix.NsecToTimeval(int64(trxTimeout))
	_ = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv)
	_ = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)

	sa := &unix.SockaddrRFCOMM{Addr: addr, Channel: t.Channel}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("rfcomm connect %s ch %d (%v): %w", t.Address, t.Channel, err, ErrNoDevice)
	}
	t.fd = fd
	return nil
}

func (t *Bluetooth) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd < 0 {
		return 0, ErrNotConnected
	}
	return writeChunked(func(chunk []byte) (int, error) {
		n, err := unix.Write(t.fd, chunk)
		if err != nil {
			if err == unix.EAGAIN {
				return 0, fmt.Errorf("rfcomm write: %w", ErrIOTimeout)
			}
			return 0, fmt.Errorf("rfcomm write: %w", err)
		}
		return n, nil
	}, p, len(p))
}

func (t *Bluetooth) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd < 0 {
		return 0, ErrNotConnected
	}
	n, err := unix.Read(t.fd, p)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, fmt.Errorf("rfcomm read: %w", ErrIOTimeout)
		}
		return 0, fmt.Errorf("rfcomm read: %w", err)
	}
	return n, nil
}

func (t *Bluetooth) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd < 0 {
		return nil
	}
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}
