package control

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"github.com/oklog/run"
)

// Loop drives every probe on its own interval. Probes sample outside any
// lock; the commit and arbitration that follow are serialized.
type Loop struct {
	state   *ControlState
	arbiter *Arbiter
	probes  []Probe
	logger  logger.Logger
	now     func() time.Time
}

func NewLoop(arbiter *Arbiter, log logger.Logger, probes ...Probe) *Loop {
	domains := make([]Domain, 0, len(probes))
	for _, p := range probes {
		domains = append(domains, p.Domain())
	}

	return &Loop{
		state:   NewControlState(domains...),
		arbiter: arbiter,
		probes:  probes,
		logger:  log,
		now:     time.Now,
	}
}

// State exposes the shared domain state.
func (l *Loop) State() *ControlState {
	return l.state
}

// Tick samples p once, commits the result and arbitrates. A tick that
// starts after ctx is done does nothing.
func (l *Loop) Tick(ctx context.Context, p Probe) (d Decision, err error) {
	if ctx.Err() != nil {
		return Decision{}, ctx.Err()
	}

	defer func() {
		if r := recover(); r != nil {
			coded := errors.New().WithData(errors.ErrMainLoop, fmt.Sprintf("panic in %s tick: %v", p.Domain(), r))
			l.logger.ErrorWithCode(coded).Msg("Recovered from panic")
			d, err = Decision{}, coded
		}
	}()

	sample := p.Sample(ctx)

	return l.state.Commit(p.Domain(), sample, l.now(), func(states []DomainState) Decision {
		return l.arbiter.Arbitrate(ctx, p.Domain(), states, l.now())
	})
}

// Run ticks every probe until ctx is cancelled. Each probe ticks once
// immediately, then at a fixed rate; ticks missed while a slow tick runs
// are dropped.
func (l *Loop) Run(ctx context.Context) error {
	if len(l.probes) == 0 {
		return errors.New().New(ErrNoProbes)
	}
	for _, p := range l.probes {
		if p.Interval() <= 0 {
			return errors.New().WithData(errors.ErrInvalidInterval, p.Domain().String())
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	for _, p := range l.probes {
		p := p
		g.Add(func() error {
			return l.runProbe(ctx, p)
		}, func(error) {
			cancel()
		})
	}

	err := g.Run()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	return err
}

func (l *Loop) runProbe(ctx context.Context, p Probe) error {
	log := l.logger.With(p.Domain().String())
	log.Info().Dur("interval", p.Interval()).Msg("Starting probe")

	l.tickLogged(ctx, p, log)

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Probe stopped")
			return ctx.Err()
		case <-ticker.C:
			l.tickLogged(ctx, p, log)
		}
	}
}

func (l *Loop) tickLogged(ctx context.Context, p Probe, log logger.Logger) {
	if _, err := l.Tick(ctx, p); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Tick failed")
	}
}
