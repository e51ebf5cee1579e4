package curve_test

import (
	"math"
	"testing"

	"codeberg.org/mutker/ipmifanctl/internal/curve"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cpuTable = curve.Table{
	{0, 0}, {47, 1}, {48, 2}, {49, 3}, {50, 4}, {51, 5}, {52, 6}, {53, 7},
	{54, 8}, {55, 10}, {60, 20}, {65, 25}, {70, 35}, {75, 100},
}

var hddTable = curve.Table{
	{0, 0}, {55, 10}, {58, 20}, {60, 30}, {65, 50}, {75, 100},
}

func TestSelectDuty(t *testing.T) {
	tests := []struct {
		name  string
		temp  float64
		table curve.Table
		want  curve.Duty
	}{
		{"exact threshold is inclusive", 52.0, cpuTable, 6},
		{"just below first non-zero threshold", 46.9, cpuTable, 0},
		{"between thresholds", 57.5, cpuTable, 10},
		{"above last threshold", 90, cpuTable, 100},
		{"at last threshold", 75, cpuTable, 100},
		{"hottest drive", 61, hddTable, 30},
		{"no drive reading", 0.0, hddTable, 0},
		{"negative temperature", -5, hddTable, 0},
		{"NaN", math.NaN(), cpuTable, 0},
		{"empty table", 80, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, curve.SelectDuty(tt.temp, tt.table))
		})
	}
}

func TestSelectDutyBelowSmallestThreshold(t *testing.T) {
	table := curve.Table{{30, 15}, {40, 50}}
	assert.Equal(t, curve.Duty(0), table.Select(29.9))
	assert.Equal(t, curve.Duty(15), table.Select(30))
}

func TestSelectDutyMonotonic(t *testing.T) {
	for _, table := range []curve.Table{cpuTable, hddTable} {
		prev := curve.SelectDuty(-20, table)
		for temp := -20.0; temp <= 120; temp += 0.1 {
			duty := curve.SelectDuty(temp, table)
			require.GreaterOrEqual(t, duty, prev, "temperature %.1f", temp)
			prev = duty
		}
	}
}

func TestSelectDutyDuplicateThresholdTakesLast(t *testing.T) {
	table := curve.Table{{0, 0}, {50, 10}, {50, 20}, {60, 30}}
	assert.Equal(t, curve.Duty(20), table.Select(50))
}

func TestValidate(t *testing.T) {
	require.NoError(t, cpuTable.Validate())
	require.NoError(t, hddTable.Validate())

	tests := []struct {
		name  string
		table curve.Table
	}{
		{"empty", curve.Table{}},
		{"unsorted", curve.Table{{0, 0}, {50, 10}, {45, 20}}},
		{"duty too high", curve.Table{{0, 0}, {50, 101}}},
		{"negative duty", curve.Table{{0, -1}}},
		{"infinite temperature", curve.Table{{math.Inf(1), 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, curve.ErrInvalidTable))
		})
	}
}

func TestFromPairs(t *testing.T) {
	table, err := curve.FromPairs([][]float64{{0, 0}, {55, 10}, {58, 20}})
	require.NoError(t, err)
	assert.Equal(t, curve.Table{{0, 0}, {55, 10}, {58, 20}}, table)

	_, err = curve.FromPairs([][]float64{{0, 0}, {55}})
	require.Error(t, err)

	_, err = curve.FromPairs([][]float64{{0, 0}, {55, 10.5}})
	require.Error(t, err)

	_, err = curve.FromPairs([][]float64{{60, 10}, {55, 20}})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, curve.ErrInvalidTable))
}
