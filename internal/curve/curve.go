// Package curve maps temperatures to fan duty values through ordered
// threshold tables.
package curve

import (
	"fmt"
	"math"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
)

const (
	MinDuty Duty = 0
	MaxDuty Duty = 100
)

// Duty is a commanded fan level in [MinDuty, MaxDuty].
type Duty int

// Threshold selects Duty once the temperature reaches Temperature.
type Threshold struct {
	Temperature float64
	Duty        Duty
}

// Table is a step function from temperature to duty, ordered by
// non-decreasing Temperature.
type Table []Threshold

// SelectDuty returns the duty of the last threshold at or below
// temperature, or 0 when temperature is below every threshold.
func SelectDuty(temperature float64, table Table) Duty {
	chosen := Duty(0)
	for _, t := range table {
		if temperature < t.Temperature || math.IsNaN(temperature) {
			break
		}
		chosen = t.Duty
	}

	return chosen
}

// Select is SelectDuty bound to the receiver.
func (t Table) Select(temperature float64) Duty {
	return SelectDuty(temperature, t)
}

// Validate rejects empty tables, unsorted thresholds and out of range duties.
func (t Table) Validate() error {
	errFactory := errors.New()

	if len(t) == 0 {
		return errFactory.WithData(ErrInvalidTable, "table is empty")
	}

	for i, entry := range t {
		if math.IsNaN(entry.Temperature) || math.IsInf(entry.Temperature, 0) {
			return errFactory.WithData(ErrInvalidTable,
				fmt.Sprintf("entry %d: temperature %v is not finite", i, entry.Temperature))
		}
		if entry.Duty < MinDuty || entry.Duty > MaxDuty {
			return errFactory.WithData(ErrInvalidTable,
				fmt.Sprintf("entry %d: duty %d outside [%d, %d]", i, entry.Duty, MinDuty, MaxDuty))
		}
		if i > 0 && entry.Temperature < t[i-1].Temperature {
			return errFactory.WithData(ErrInvalidTable,
				fmt.Sprintf("entry %d: temperature %v below previous %v", i, entry.Temperature, t[i-1].Temperature))
		}
	}

	return nil
}

// FromPairs builds and validates a table from [temperature, duty] pairs.
func FromPairs(pairs [][]float64) (Table, error) {
	errFactory := errors.New()

	table := make(Table, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, errFactory.WithData(ErrInvalidTable,
				fmt.Sprintf("entry %d: want [temperature, duty], got %v", i, pair))
		}
		if pair[1] != math.Trunc(pair[1]) {
			return nil, errFactory.WithData(ErrInvalidTable,
				fmt.Sprintf("entry %d: duty %v is not an integer", i, pair[1]))
		}
		table = append(table, Threshold{Temperature: pair[0], Duty: Duty(pair[1])})
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}

	return table, nil
}
