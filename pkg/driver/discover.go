package driver

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// ProbeKind categorizes a discovered USB JTAG probe, mirroring the
// teacher's jtag.InterfaceKind (pkg/jtag/interfaces.go).
type ProbeKind string

const (
	ProbeKindCMSISDAP ProbeKind = "cmsis-dap"
	ProbeKindPico     ProbeKind = "picoprobe"
	ProbeKindLoopback ProbeKind = "loopback"
)

// ProbeInfo describes one discovered candidate probe.
type ProbeInfo struct {
	Kind        ProbeKind
	Description string
	VendorID    uint16
	ProductID   uint16
}

// Label renders a human-readable line for the discover CLI command.
func (p ProbeInfo) Label() string {
	if p.Description != "" {
		return p.Description
	}
	return fmt.Sprintf("%s (%04X:%04X)", p.Kind, p.VendorID, p.ProductID)
}

type knownDevice struct {
	vendorID, productID uint16
	description         string
	kind                ProbeKind
}

// knownDevices is the VID/PID table this module actually needs: just
// enough to recognize common CMSIS-DAP and Pico-based probes during
// discovery, grounded on the teacher's knownCMSISDAPVIDPIDs/
// knownPicoVIDPIDs tables, without porting the CMSIS-DAP protocol stack
// those tables originally fed (see DESIGN.md).
var knownDevices = []knownDevice{
	{vendorID: 0x2e8a, productID: 0x000c, description: "PicoProbe", kind: ProbeKindPico},
	{vendorID: 0x2e8a, productID: 0x000a, description: "Raspberry Pi Pico (CDC/JTAG)", kind: ProbeKindPico},
	{vendorID: 0x0d28, productID: 0x0204, description: "DAPLink CMSIS-DAP", kind: ProbeKindCMSISDAP},
	{vendorID: 0x1366, productID: 0x0101, description: "SEGGER J-Link CMSIS-DAP", kind: ProbeKindCMSISDAP},
}

// Discover enumerates connected USB devices that match a known JTAG-probe
// VID/PID and always appends a loopback entry so the CLI has something to
// exercise without hardware attached (spec §8's loopback driver).
func Discover(ctx context.Context) ([]ProbeInfo, error) {
	var results []ProbeInfo

	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if info, ok := classify(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, ProbeInfo{Kind: ProbeKindLoopback, Description: "Loopback (no hardware)"})
	return results, nil
}

func classify(desc *gousb.DeviceDesc) (ProbeInfo, bool) {
	for _, known := range knownDevices {
		if uint16(desc.Vendor) == known.vendorID && uint16(desc.Product) == known.productID {
			return ProbeInfo{
				Kind:        known.kind,
				Description: known.description,
				VendorID:    known.vendorID,
				ProductID:   known.productID,
			}, true
		}
	}
	return ProbeInfo{}, false
}
