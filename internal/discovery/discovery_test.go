package discovery

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// These tests talk to real buses and are skipped unless explicitly enabled.

func TestUSBPrinters(t *testing.T) {
	if os.Getenv("LABELPRESS_HW_TESTS") == "" {
		t.Skip("set LABELPRESS_HW_TESTS to enumerate real USB devices")
	}
	printers, err := USBPrinters()
	require.NoError(t, err)
	for _, p := range printers {
		t.Logf("found %s (serial %s)", p.Model, p.Serial)
	}
}

func TestBluetoothDevices(t *testing.T) {
	if os.Getenv("LABELPRESS_HW_TESTS") == "" {
		t.Skip("set LABELPRESS_HW_TESTS to scan for real Bluetooth devices")
	}
	devices, err := BluetoothDevices(3 * time.Second)
	require.NoError(t, err)
	for _, d := range devices {
		t.Logf("found %s at %s", d.Name, d.Address)
	}
}
