// Package transport provides byte-level links to Brother PT label printers.
// A Transport carries raw command bytes in both directions and knows nothing
// about the raster protocol spoken over it. Implementations exist for USB
// bulk endpoints, Bluetooth RFCOMM sockets and plain serial ports; all three
// share the same contract: Connect acquires the device, Write sends a whole
// buffer or fails, Read performs a single bounded read, Close is idempotent.
package transport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Transport interface {
	Connect() error
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

var (
	// ErrNoDevice means no matching printer was found, or the device
	// refused the link.
	ErrNoDevice = errors.New("no supported printer found")

	// ErrNotConnected means the transport was used before Connect or
	// after Close.
	ErrNotConnected = errors.New("transport is not connected")

	// ErrIOTimeout means a write made no progress or a read window
	// elapsed without data.
	ErrIOTimeout = errors.New("io timeout")
)

// Per-transaction timeout applied to every read and every write chunk.
const trxTimeout = 15 * time.Second

// writeChunked pushes p through w in chunks of at most size bytes until the
// whole buffer is sent. A chunk that reports progress but an error stops the
// loop with that error; a chunk that makes no progress at all stops it with
// ErrIOTimeout.
func writeChunked(w func([]byte) (int, error), p []byte, size int) (int, error) {
	sent := 0
	for sent < len(p) {
		end := sent + size
		if end > len(p) {
			end = len(p)
		}
		n, err := w(p[sent:end])
		sent += n
		if err != nil {
			return sent, err
		}
		if n == 0 {
			return sent, fmt.Errorf("wrote %d of %d bytes: %w", sent, len(p), ErrIOTimeout)
		}
	}
	return sent, nil
}

// parseAddress converts a colon-separated Bluetooth MAC address into the
// little-endian byte order RFCOMM socket addresses use.
func parseAddress(s string) ([6]byte, error) {
	var addr [6]byte
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return addr, fmt.Errorf("invalid bluetooth address %q", s)
	}
	for i, part := range parts {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return addr, fmt.Errorf("invalid bluetooth address %q: %w", s, err)
		}
		addr[5-i] = byte(b)
	}
	return addr, nil
}
