package inference

import (
	"fmt"
	"os"
	"strings"
)

// DeviceKind names a class of compute target.
type DeviceKind string

// Supported device kinds.
const (
	DeviceCPU  DeviceKind = "cpu"
	DeviceCUDA DeviceKind = "cuda"
)

// offloadAllLayers asks llama.cpp to place every layer on the accelerator.
const offloadAllLayers = 999

// Device is a concrete compute target.
type Device struct {
	Kind  DeviceKind
	Index int
}

// CPU is the general-purpose compute target.
var CPU = Device{Kind: DeviceCPU}

func (d Device) String() string {
	if d.Kind == DeviceCUDA {
		return fmt.Sprintf("cuda:%d", d.Index)
	}
	return string(DeviceCPU)
}

// IsAccelerator reports whether d is a GPU.
func (d Device) IsAccelerator() bool {
	return d.Kind == DeviceCUDA
}

// LoadOptions returns the weight placement used on d: half precision with
// every layer offloaded on an accelerator, default precision on CPU.
func (d Device) LoadOptions() LoadOptions {
	if d.IsAccelerator() {
		return LoadOptions{HalfPrecision: true, GPULayers: offloadAllLayers}
	}
	return LoadOptions{}
}

// ResolveDevice maps a device selector to a concrete target. Selectors naming
// an accelerator ("cuda", "cuda:1", "gpu") resolve to the first accelerator
// when one is available; everything else resolves to CPU.
func ResolveDevice(selector string, acceleratorAvailable bool) Device {
	s := strings.ToLower(strings.TrimSpace(selector))
	if acceleratorAvailable && (strings.Contains(s, "cuda") || strings.Contains(s, "gpu")) {
		return Device{Kind: DeviceCUDA, Index: 0}
	}
	return CPU
}

// acceleratorProbePaths are files present on hosts with an NVIDIA driver.
var acceleratorProbePaths = []string{"/dev/nvidia0", "/proc/driver/nvidia/version"}

func acceleratorPresent(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}
