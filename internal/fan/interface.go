package fan

import (
	"context"

	"codeberg.org/mutker/ipmifanctl/internal/curve"
)

// Actuator applies a duty value to the fan hardware.
type Actuator interface {
	Apply(ctx context.Context, duty curve.Duty) error
}

// DutyPlaceholder is replaced with the duty value in command templates.
const DutyPlaceholder = "{duty}"

// DefaultCommand sets all fan zones through the BMC's raw OEM command.
var DefaultCommand = []string{"ipmitool", "raw", "0x3a", "0x07", "0xFF", DutyPlaceholder, "0x01"}
