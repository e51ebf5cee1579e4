package control

import (
	"sync"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
)

// ControlState holds one DomainState per registered domain. All writes and
// every arbitration go through Commit, which serializes them.
type ControlState struct {
	mu    sync.Mutex
	order []Domain
	slots map[Domain]*DomainState
}

// NewControlState registers domains with a starting duty of 0.
func NewControlState(domains ...Domain) *ControlState {
	s := &ControlState{
		slots: make(map[Domain]*DomainState, len(domains)),
	}

	for _, d := range domains {
		if _, ok := s.slots[d]; ok {
			continue
		}
		s.order = append(s.order, d)
		s.slots[d] = &DomainState{Domain: d}
	}

	return s
}

// Commit writes sample into domain's slot when it is valid, then runs
// arbitrate on a snapshot of every slot. The lock is held across both so
// no other domain's tick can interleave.
func (s *ControlState) Commit(
	domain Domain, sample Sample, at time.Time, arbitrate func([]DomainState) Decision,
) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[domain]
	if !ok {
		return Decision{}, errors.New().WithData(ErrUnknownDomain, string(domain))
	}

	if sample.Valid {
		slot.Duty = sample.Duty
		slot.LastUpdated = at
	}

	return arbitrate(s.snapshot()), nil
}

// Snapshot returns a copy of all slots in registration order.
func (s *ControlState) Snapshot() []DomainState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

// Get returns a copy of one slot.
func (s *ControlState) Get(domain Domain) (DomainState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[domain]
	if !ok {
		return DomainState{}, false
	}

	return *slot, true
}

func (s *ControlState) snapshot() []DomainState {
	states := make([]DomainState, 0, len(s.order))
	for _, d := range s.order {
		states = append(states, *s.slots[d])
	}

	return states
}
