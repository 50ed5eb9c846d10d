package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/gousb"
)

// Brother's USB vendor ID and the PT models speaking this raster protocol.
const VendorID gousb.ID = 0x04F9

var ProductIDs = map[gousb.ID]string{
	0x2060: "PT-E550W",
	0x2062: "PT-P750W",
	0x20AF: "PT-P710BT",
}

const (
	usbOutEndpoint = 2    // bulk OUT 0x02
	usbInEndpoint  = 1    // bulk IN 0x81
	usbChunkSize   = 0x40 // bulk packet size
)

// USB talks to a printer over its bulk endpoints. The zero value is not
// usable; construct with NewUSB.
type USB struct {
	// Serial optionally pins the transport to one printer when several
	// are plugged in. Empty matches the first supported device.
	Serial string

	mu   sync.Mutex
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	out  *gousb.OutEndpoint
	in   *gousb.InEndpoint
}

func NewUSB(serial string) *USB {
	return &USB{Serial: serial}
}

func (t *USB) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev != nil {
		return nil
	}

	ctx := gousb.NewContext()
	devs, _ := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != VendorID {
			return false
		}
		_, ok := ProductIDs[desc.Product]
		return ok
	})

	// Keep the first device that passes the serial filter, close the rest.
	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil && t.matches(d) {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		ctx.Close()
		return fmt.Errorf("usb vendor %s: %w", VendorID, ErrNoDevice)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return fmt.Errorf("Couldn't detach kernel driver:\n%w", err)
	}
	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return fmt.Errorf("Couldn't claim configuration:\n%w", err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return fmt.Errorf("Couldn't claim interface:\n%w", err)
	}
	out, err := intf.OutEndpoint(usbOutEndpoint)
	if err == nil {
		t.in, err = intf.InEndpoint(usbInEndpoint)
	}
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		t.in = nil
		return fmt.Errorf("Couldn't open bulk endpoints:\n%w", err)
	}

	t.ctx, t.dev, t.cfg, t.intf, t.out = ctx, dev, cfg, intf, out
	return nil
}

func (t *USB) matches(d *gousb.Device) bool {
	if t.Serial == "" {
		return true
	}
	s, err := d.SerialNumber()
	return err == nil && s == t.Serial
}

// Write sends p in bulk-packet sized chunks, each bounded by the transaction
// timeout.
func (t *USB) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.out == nil {
		return 0, ErrNotConnected
	}
	return writeChunked(func(chunk []byte) (int, error) {
		wctx, cancel := context.WithTimeout(context.Background(), trxTimeout)
		defer cancel()
		n, err := t.out.WriteContext(wctx, chunk)
		if err != nil {
			if wctx.Err() != nil {
				return n, fmt.Errorf("usb write: %w", ErrIOTimeout)
			}
			return n, fmt.Errorf("usb write: %w", err)
		}
		return n, nil
	}, p, usbChunkSize)
}

// Read performs one bounded bulk read; it returns however many bytes the
// device had ready, which may be fewer than len(p).
func (t *USB) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.in == nil {
		return 0, ErrNotConnected
	}
	rctx, cancel := context.WithTimeout(context.Background(), trxTimeout)
	defer cancel()
	n, err := t.in.ReadContext(rctx, p)
	if err != nil {
		if rctx.Err() != nil {
			return n, fmt.Errorf("usb read: %w", ErrIOTimeout)
		}
		return n, fmt.Errorf("usb read: %w", err)
	}
	return n, nil
}

func (t *USB) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.intf != nil {
		t.intf.Close()
		t.intf, t.out, t.in = nil, nil, nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	var err error
	if t.ctx != nil {
		err = t.ctx.Close()
		t.ctx = nil
	}
	return err
}
