// Package discovery enumerates attached label printers. Both lookups are
// pure queries: they open nothing that stays open and keep no state between
// calls.
package discovery

import (
	"fmt"

	"github.com/google/gousb"

	"labelpress/internal/transport"
)

// USBPrinter describes one attached printer.
type USBPrinter struct {
	Model        string `json:"model"`
	Type         string `json:"type"`
	Product      string `json:"product"`
	Serial       string `json:"serial"`
	Manufacturer string `json:"manufacturer"`
}

// USBPrinters lists every supported printer on the USB bus. Descriptor
// strings that can't be read are left empty rather than failing the whole
// enumeration.
func USBPrinters() ([]USBPrinter, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != transport.VendorID {
			return false
		}
		_, ok := transport.ProductIDs[desc.Product]
		return ok
	})
	for _, d := range devs {
		defer d.Close()
	}
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("Couldn't enumerate USB devices:\n%w", err)
	}

	printers := make([]USBPrinter, 0, len(devs))
	for _, d := range devs {
		p := USBPrinter{
			Model: transport.ProductIDs[d.Desc.Product],
			Type:  "usb",
		}
		if s, err := d.Product(); err == nil {
			p.Product = s
		}
		if s, err := d.SerialNumber(); err == nil {
			p.Serial = s
		}
		if s, err := d.Manufacturer(); err == nil {
			p.Manufacturer = s
		}
		printers = append(printers, p)
	}
	return printers, nil
}
