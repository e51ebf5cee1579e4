package control

import (
	"context"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/curve"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/fan"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"codeberg.org/mutker/ipmifanctl/internal/metrics"
)

// Decide returns the highest duty requested by any domain, so the fans
// always satisfy the hottest one.
func Decide(states []DomainState) curve.Duty {
	duty := curve.MinDuty
	for _, s := range states {
		if s.Duty > duty {
			duty = s.Duty
		}
	}

	return duty
}

// Arbiter turns a snapshot of domain duties into one actuator command.
type Arbiter struct {
	actuator fan.Actuator
	journal  metrics.Collector
	monitor  bool
	logger   logger.Logger
}

type ArbiterOption func(*Arbiter)

// WithJournal records every decision to collector.
func WithJournal(collector metrics.Collector) ArbiterOption {
	return func(a *Arbiter) {
		a.journal = collector
	}
}

// WithMonitor marks decisions as not applied to hardware. The actuator is
// expected to be a fan.Monitor in that case.
func WithMonitor(monitor bool) ArbiterOption {
	return func(a *Arbiter) {
		a.monitor = monitor
	}
}

func NewArbiter(actuator fan.Actuator, log logger.Logger, opts ...ArbiterOption) *Arbiter {
	a := &Arbiter{
		actuator: actuator,
		journal:  metrics.NewNoop(),
		logger:   log,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Arbitrate commands the maximum duty in states. An actuator failure is
// logged and reported on the Decision; it never stops the caller.
func (a *Arbiter) Arbitrate(ctx context.Context, trigger Domain, states []DomainState, at time.Time) Decision {
	d := Decision{
		At:        at,
		Trigger:   trigger,
		States:    states,
		Commanded: Decide(states),
	}

	ev := a.logger.Info().Str("trigger", trigger.String())
	for _, s := range states {
		ev = ev.Int(s.Domain.String()+"_duty", int(s.Duty))
	}
	ev.Int("commanded", int(d.Commanded)).Msg("Arbitrated fan duty")

	if err := a.actuator.Apply(ctx, d.Commanded); err != nil {
		d.Err = err
		a.logger.ErrorWithCode(errors.New().Wrap(ErrActuatorFailed, err)).
			Int("duty", int(d.Commanded)).
			Msg("Failed to apply fan duty")
	} else {
		d.Applied = !a.monitor
	}

	a.record(ctx, d)

	return d
}

func (a *Arbiter) record(ctx context.Context, d Decision) {
	snapshot := &metrics.DecisionSnapshot{
		Timestamp: d.At,
		Trigger:   d.Trigger.String(),
		Duties:    make(map[string]int, len(d.States)),
		Commanded: int(d.Commanded),
		Applied:   d.Applied,
		Monitor:   a.monitor,
	}
	for domain, duty := range d.Duties() {
		snapshot.Duties[domain.String()] = int(duty)
	}
	if d.Err != nil {
		snapshot.Error = d.Err.Error()
	}

	if err := a.journal.Record(ctx, snapshot); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to record decision")
	}
}
