package sensor_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const amdSensorsOutput = `k10temp-pci-00c3
Adapter: PCI adapter
Tctl:         +52.0°C
Tccd1:        +44.5°C

nvme-pci-0100
Adapter: PCI adapter
Composite:    +36.9°C  (low  = -273.1°C, high = +81.8°C)
                       (crit = +84.8°C)
`

const intelSensorsOutput = `coretemp-isa-0000
Adapter: ISA adapter
Package id 0:  +48.0°C  (high = +101.0°C, crit = +115.0°C)
Core 0:        +46.0°C  (high = +101.0°C, crit = +115.0°C)
`

const scsiSmartctlOutput = `smartctl 7.3 2022-02-28 r5338 [x86_64-linux-6.1.0] (local build)

=== START OF READ SMART DATA SECTION ===
Current Drive Temperature:     56 C
Drive Trip Temperature:        65 C
`

const ataSmartctlOutput = `=== START OF READ SMART DATA SECTION ===
SMART Attributes Data Structure revision number: 16
ID# ATTRIBUTE_NAME          FLAG     VALUE WORST THRESH TYPE      UPDATED  WHEN_FAILED RAW_VALUE
  1 Raw_Read_Error_Rate     0x000b   100   100   016    Pre-fail  Always       -       0
190 Airflow_Temperature_Cel 0x0022   061   045   000    Old_age   Always       -       39
194 Temperature_Celsius     0x0002   153   153   000    Old_age   Always       -       41 (Min/Max 20/49)
`

const airflowOnlyOutput = `ID# ATTRIBUTE_NAME          FLAG     VALUE WORST THRESH TYPE      UPDATED  WHEN_FAILED RAW_VALUE
190 Airflow_Temperature_Cel 0x0022   061   045   000    Old_age   Always       -       39 (Min/Max 22/44)
`

const nvmeSmartctlOutput = `=== START OF SMART DATA SECTION ===
SMART/Health Information (NVMe Log 0x02)
Critical Warning:                   0x00
Temperature:                        38 Celsius
Available Spare:                    100%
`

type fakeRunner struct {
	out   map[string]string
	err   error
	block bool
	calls []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.calls = append(f.calls, cmd)

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}

	out, ok := f.out[cmd]
	if !ok {
		return nil, fmt.Errorf("unexpected command %q", cmd)
	}

	return []byte(out), nil
}

func TestParseSensorsLabel(t *testing.T) {
	temp, err := sensor.ParseSensorsLabel([]byte(amdSensorsOutput), "Tctl")
	require.NoError(t, err)
	assert.InDelta(t, 52.0, temp, 0.001)

	temp, err = sensor.ParseSensorsLabel([]byte(intelSensorsOutput), "Package id 0")
	require.NoError(t, err)
	assert.InDelta(t, 48.0, temp, 0.001)

	_, err = sensor.ParseSensorsLabel([]byte(intelSensorsOutput), "Tctl")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrParseFailed))
}

func TestLMSensorsTemperature(t *testing.T) {
	runner := &fakeRunner{out: map[string]string{"sensors": amdSensorsOutput}}
	reader := sensor.NewLMSensors("", "", time.Second)
	reader.Runner = runner

	temp, err := reader.Temperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 52.0, temp, 0.001)
	assert.Equal(t, []string{"sensors"}, runner.calls)
}

func TestLMSensorsCommandFailure(t *testing.T) {
	reader := sensor.NewLMSensors("sensors", "Tctl", time.Second)
	reader.Runner = &fakeRunner{err: fmt.Errorf("exit status 1")}

	_, err := reader.Temperature(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrCommandFailed))
}

func TestLMSensorsTimeout(t *testing.T) {
	reader := sensor.NewLMSensors("sensors", "Tctl", 20*time.Millisecond)
	reader.Runner = &fakeRunner{block: true}

	start := time.Now()
	_, err := reader.Temperature(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrTimeout))
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseSmartctl(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want float64
	}{
		{"scsi", scsiSmartctlOutput, 56},
		{"ata prefers attribute 194 raw value", ataSmartctlOutput, 41},
		{"ata airflow fallback", airflowOnlyOutput, 39},
		{"nvme", nvmeSmartctlOutput, 38},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			temp, err := sensor.ParseSmartctl([]byte(tt.out))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, temp, 0.001)
		})
	}

	_, err := sensor.ParseSmartctl([]byte("Smartctl open device: /dev/sdz failed: No such device\n"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrParseFailed))
}

func TestSmartctlTemperature(t *testing.T) {
	runner := &fakeRunner{out: map[string]string{
		"smartctl -A /dev/sda": scsiSmartctlOutput,
	}}
	reader := sensor.NewSmartctl("", time.Second)
	reader.Runner = runner

	temp, err := reader.Temperature(context.Background(), "/dev/sda")
	require.NoError(t, err)
	assert.InDelta(t, 56.0, temp, 0.001)

	_, err = reader.Temperature(context.Background(), "/dev/sdb")
	require.Error(t, err)
}
