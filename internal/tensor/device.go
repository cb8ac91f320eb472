package tensor

import "fmt"

// DeviceKind identifies a class of compute device.
type DeviceKind int

// Supported device kinds.
const (
	KindCPU DeviceKind = iota
	KindCUDA
)

// Device identifies where a tensor's memory lives. CUDA devices carry an
// explicit ordinal; there is no implicit "device 0".
type Device struct {
	Kind    DeviceKind
	Ordinal int
}

// CPU is the host device.
var CPU = Device{Kind: KindCPU}

// CUDA returns the CUDA device with the given ordinal.
func CUDA(ordinal int) Device {
	return Device{Kind: KindCUDA, Ordinal: ordinal}
}

// IsCPU reports whether the device is the host.
func (d Device) IsCPU() bool {
	return d.Kind == KindCPU
}

// String returns a human-readable device name.
func (d Device) String() string {
	switch d.Kind {
	case KindCPU:
		return "CPU"
	case KindCUDA:
		return fmt.Sprintf("CUDA:%d", d.Ordinal)
	default:
		return "Unknown"
	}
}
