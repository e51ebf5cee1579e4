package fan

import (
	"context"

	"codeberg.org/mutker/ipmifanctl/internal/curve"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
)

// Monitor is an Actuator that only logs. Used in monitor mode.
type Monitor struct {
	logger logger.Logger
}

func NewMonitor(log logger.Logger) *Monitor {
	return &Monitor{logger: log}
}

func (m *Monitor) Apply(_ context.Context, duty curve.Duty) error {
	m.logger.Info().Int("duty", int(duty)).Msg("Monitor mode: fan duty not applied")
	return nil
}
