package sensor

import (
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	ErrCommandFailed  = errors.ErrorCode("sensor_command_failed")
	ErrParseFailed    = errors.ErrorCode("sensor_parse_failed")
	ErrNVMLInitFailed = errors.ErrorCode("sensor_nvml_init_failed")
	ErrNVMLReadFailed = errors.ErrorCode("sensor_nvml_read_failed")
	ErrNoDevices      = errors.ErrorCode("sensor_no_devices")
	ErrNotInitialized = errors.ErrorCode("sensor_not_initialized")
	ErrTimeout        = errors.ErrTimeout
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
