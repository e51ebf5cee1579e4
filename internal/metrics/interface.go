package metrics

import (
	"context"
	"time"
)

// Collector records arbitration decisions.
type Collector interface {
	Record(ctx context.Context, snapshot *DecisionSnapshot) error
	Close() error
}

// Repository stores decision snapshots.
type Repository interface {
	Record(snapshot *DecisionSnapshot) error
	Close() error
}

// DecisionSnapshot is one arbitration: the per-domain duties it saw and the
// duty it commanded. Temperatures are not part of it.
type DecisionSnapshot struct {
	Timestamp time.Time
	Trigger   string
	Duties    map[string]int
	Commanded int
	Applied   bool
	Monitor   bool
	Error     string
}
