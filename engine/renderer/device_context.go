package renderer

import (
	"fmt"

	"github.com/spaghettifunk/usu/engine/core"
)

// AdapterPreferences drives adapter selection.
type AdapterPreferences struct {
	PreferHighPerformance bool
	// MinAPIVersion is the lowest acceptable packed API version; 0 accepts any.
	MinAPIVersion uint32
}

// SelectAdapter never returns a CPU adapter. With PreferHighPerformance a
// discrete GPU wins; otherwise, and as a fallback, the first hardware adapter
// in enumeration order is used.
func SelectAdapter(adapters []AdapterInfo, prefs AdapterPreferences) (AdapterInfo, error) {
	candidates := make([]AdapterInfo, 0, len(adapters))
	for _, a := range adapters {
		if a.Type == AdapterTypeCPU {
			core.LogDebug("Adapter '%s' is a software rasterizer, skipping.", a.Name)
			continue
		}
		if !a.SupportsGraphics || !a.SupportsPresent {
			core.LogDebug("Adapter '%s' lacks graphics or present support, skipping.", a.Name)
			continue
		}
		if a.APIVersion < prefs.MinAPIVersion {
			core.LogDebug("Adapter '%s' API version too old, skipping.", a.Name)
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return AdapterInfo{}, core.ErrNoCompatibleAdapter
	}

	if prefs.PreferHighPerformance {
		for _, a := range candidates {
			if a.Type == AdapterTypeDiscrete {
				return a, nil
			}
		}
	}
	return candidates[0], nil
}

// DeviceContext owns the device, its graphics queue and the monotonic fence
// used for every CPU/GPU synchronization.
type DeviceContext struct {
	backend Backend
	prefs   AdapterPreferences
	adapter AdapterInfo

	fenceValue  uint64
	initialized bool
}

func NewDeviceContext(backend Backend, prefs AdapterPreferences) *DeviceContext {
	return &DeviceContext{
		backend: backend,
		prefs:   prefs,
	}
}

func (dc *DeviceContext) Initialize() error {
	adapters, err := dc.backend.EnumerateAdapters()
	if err != nil {
		return fmt.Errorf("failed to enumerate adapters: %w", err)
	}

	adapter, err := SelectAdapter(adapters, dc.prefs)
	if err != nil {
		core.LogError("None of the %d adapters can render this application.", len(adapters))
		return err
	}
	core.LogInfo("Selected adapter '%s' (%s).", adapter.Name, adapter.Type)

	if err := dc.backend.CreateDevice(adapter); err != nil {
		return fmt.Errorf("failed to create device on '%s': %w", adapter.Name, err)
	}
	dc.adapter = adapter
	dc.fenceValue = 0
	dc.initialized = true
	return nil
}

func (dc *DeviceContext) Backend() Backend {
	return dc.backend
}

func (dc *DeviceContext) Adapter() AdapterInfo {
	return dc.adapter
}

// Signal enqueues the next fence value and returns it.
func (dc *DeviceContext) Signal() (uint64, error) {
	if !dc.initialized {
		return 0, core.ErrNotInitialized
	}
	next := dc.fenceValue + 1
	if err := dc.backend.SignalFence(next); err != nil {
		return 0, err
	}
	dc.fenceValue = next
	return next, nil
}

// WaitFor blocks until the GPU has reached value. There is no timeout.
func (dc *DeviceContext) WaitFor(value uint64) error {
	if !dc.initialized {
		return core.ErrNotInitialized
	}
	completed, err := dc.backend.CompletedFenceValue()
	if err != nil {
		return err
	}
	if completed >= value {
		return nil
	}
	return dc.backend.WaitFence(value)
}

// SignalAndWait drains the queue.
func (dc *DeviceContext) SignalAndWait() error {
	v, err := dc.Signal()
	if err != nil {
		return err
	}
	return dc.WaitFor(v)
}

func (dc *DeviceContext) CompletedValue() uint64 {
	if !dc.initialized {
		return 0
	}
	v, err := dc.backend.CompletedFenceValue()
	if err != nil {
		core.LogWarn("Unable to query fence: %s", err)
		return 0
	}
	return v
}

func (dc *DeviceContext) LastSignaled() uint64 {
	return dc.fenceValue
}

// Close drains the GPU and destroys the device. Calling it twice is a no-op.
func (dc *DeviceContext) Close() error {
	if !dc.initialized {
		return nil
	}
	err := dc.SignalAndWait()
	if err != nil {
		core.LogError("Drain before shutdown failed: %s", err)
	}
	dc.backend.DestroyDevice()
	dc.initialized = false
	return err
}
