package discovery

import (
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"
)

// BluetoothDevice is one advertisement seen during a scan.
type BluetoothDevice struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// BluetoothDevices scans for nearby devices for the given duration and
// returns the named ones, deduplicated by address. The P710BT advertises
// its serial-port channel under its model name, so a name filter upstream
// is enough to spot printers.
func BluetoothDevices(duration time.Duration) ([]BluetoothDevice, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("Couldn't enable Bluetooth:\n%w", err)
	}

	seen := make(map[string]bool)
	var devices []BluetoothDevice

	timer := time.AfterFunc(duration, func() {
		adapter.StopScan()
	})
	defer timer.Stop()

	err := adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		name := result.LocalName()
		if name == "" {
			return
		}
		addr := result.Address.String()
		if seen[addr] {
			return
		}
		seen[addr] = true
		devices = append(devices, BluetoothDevice{Address: addr, Name: name})
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to scan for devices:\n%w", err)
	}
	return devices, nil
}
