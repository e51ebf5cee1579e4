package control

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	ErrUnknownDomain         = errors.ErrorCode("control_unknown_domain")
	ErrNoProbes              = errors.ErrorCode("control_no_probes")
	ErrReadingUnavailable    = errors.ErrReadingUnavailable
	ErrAllDevicesUnavailable = errors.ErrAllDevicesUnavailable
	ErrActuatorFailed        = errors.ErrActuatorFailed
)
