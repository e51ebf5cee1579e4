// Package control runs the fan control loop: one probe per thermal domain,
// each on its own schedule, feeding a shared state that is arbitrated into
// a single commanded duty after every tick.
package control

import (
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/curve"
)

// Domain is an independently monitored thermal source.
type Domain string

const (
	CPU Domain = "cpu"
	HDD Domain = "hdd"
	GPU Domain = "gpu"
)

func (d Domain) String() string {
	return string(d)
}

// DomainState is the last duty a domain asked for. LastUpdated is zero
// until the first successful tick.
type DomainState struct {
	Domain      Domain
	Duty        curve.Duty
	LastUpdated time.Time
}

// Sample is the outcome of one probe tick. Valid is false when the probe
// has no new information and the domain must keep its previous duty.
type Sample struct {
	Duty        curve.Duty
	Temperature float64
	Valid       bool
}

// Decision is the result of one arbitration.
type Decision struct {
	At        time.Time
	Trigger   Domain
	States    []DomainState
	Commanded curve.Duty
	Applied   bool
	Err       error
}

// Duties returns the per-domain duties the decision was based on.
func (d Decision) Duties() map[Domain]curve.Duty {
	duties := make(map[Domain]curve.Duty, len(d.States))
	for _, s := range d.States {
		duties[s.Domain] = s.Duty
	}

	return duties
}
