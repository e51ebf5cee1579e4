package fan

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	ErrApplyFailed    = errors.ErrActuatorFailed
	ErrInvalidCommand = errors.ErrorCode("fan_invalid_command")
	ErrDutyOutOfRange = errors.ErrorCode("fan_duty_out_of_range")
	ErrTimeout        = errors.ErrTimeout
)
