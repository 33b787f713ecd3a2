package main

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

var backendNames = map[string]gputypes.Backend{
	"vulkan": gputypes.BackendVulkan,
	"metal":  gputypes.BackendMetal,
	"dx12":   gputypes.BackendDX12,
	"gl":     gputypes.BackendGL,
	"empty":  gputypes.BackendEmpty,
}

// device is an opened hal device with the instance that owns it.
type device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
}

// openDevice opens the first discrete or integrated adapter of the named
// backend, or of the best available backend when name is empty.
func openDevice(name string, logger *slog.Logger) (*device, error) {
	var backend hal.Backend
	if name == "" {
		b, err := hal.SelectBestBackend()
		if err != nil {
			return nil, fmt.Errorf("select backend: %w", err)
		}
		backend = b
	} else {
		variant, ok := backendNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown backend %q", name)
		}
		b, ok := hal.GetBackend(variant)
		if !ok {
			return nil, fmt.Errorf("%s backend not available", name)
		}
		backend = b
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	logger.Info("evalgraph: device opened", "backend", backend.Variant().String(), "adapter", selected.Info.Name)
	return &device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
	}, nil
}

func (d *device) Close() {
	d.device.Destroy()
	d.instance.Destroy()
}
