package sensor

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVML reads GPU core temperatures through the NVIDIA management library.
type NVML struct {
	Timeout time.Duration

	mu          sync.Mutex
	devices     []nvml.Device
	initialized bool
}

func NewNVML(timeout time.Duration) *NVML {
	return &NVML{Timeout: timeout}
}

// Init loads NVML and caches a handle per GPU.
func (g *NVML) Init() error {
	errFactory := errors.New()
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.initialized {
		return nil
	}

	if ret := nvml.Init(); !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrNVMLInitFailed, newNVMLError(ret))
	}

	count, ret := nvml.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		nvml.Shutdown()
		return errFactory.Wrap(ErrNVMLInitFailed, newNVMLError(ret))
	}
	if count == 0 {
		nvml.Shutdown()
		return errFactory.New(ErrNoDevices)
	}

	devices := make([]nvml.Device, 0, count)
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if !IsNVMLSuccess(ret) {
			nvml.Shutdown()
			return errFactory.Wrap(ErrNVMLInitFailed, newNVMLError(ret))
		}
		devices = append(devices, device)
	}

	g.devices = devices
	g.initialized = true

	return nil
}

// Count returns the number of GPUs found by Init.
func (g *NVML) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.devices)
}

func (g *NVML) Shutdown() error {
	errFactory := errors.New()
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		return nil
	}

	if ret := nvml.Shutdown(); !IsNVMLSuccess(ret) {
		return errFactory.Wrap(errors.ErrShutdownFailed, newNVMLError(ret))
	}

	g.devices = nil
	g.initialized = false

	return nil
}

// Temperature returns the hottest GPU. GPUs that fail to report are
// skipped; the call fails only when none report.
func (g *NVML) Temperature(ctx context.Context) (float64, error) {
	return call(ctx, g.Timeout, g.readMax)
}

// readMax is single-flight: while an earlier read is still stuck in the
// driver, later calls fail fast instead of queueing behind it.
func (g *NVML) readMax() (float64, error) {
	errFactory := errors.New()
	if !g.mu.TryLock() {
		return 0, errFactory.WithData(ErrTimeout, "previous NVML read still in progress")
	}
	defer g.mu.Unlock()

	if !g.initialized {
		return 0, errFactory.New(ErrNotInitialized)
	}

	var (
		hottest float64
		found   bool
		lastErr error
	)
	for _, device := range g.devices {
		temp, ret := device.GetTemperature(nvml.TEMPERATURE_GPU)
		if !IsNVMLSuccess(ret) {
			lastErr = newNVMLError(ret)
			continue
		}
		if !found || float64(temp) > hottest {
			hottest = float64(temp)
		}
		found = true
	}

	if !found {
		return 0, errFactory.Wrap(ErrNVMLReadFailed, lastErr)
	}

	return hottest, nil
}
