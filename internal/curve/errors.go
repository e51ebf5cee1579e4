package curve

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	ErrInvalidTable = errors.ErrorCode("curve_invalid_table")
)
