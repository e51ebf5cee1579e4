package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/config"
	"codeberg.org/mutker/ipmifanctl/internal/control"
	"codeberg.org/mutker/ipmifanctl/internal/curve"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ipmifanctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
monitor = true
timeout = 3

[cpu]
interval = 2
sensor_label = "Package id 0"
thresholds = [[0, 0], [40, 10], [80, 100]]

[hdd]
interval = 120
devices = ["/dev/sda", "/dev/sdb"]
concurrency = 2
on_unavailable = "retain"

[fan]
command = ["ipmitool", "raw", "0x30", "0x70", "0x66", "0x01", "0x00", "{duty}"]
exit_duty = 100

[journal]
enabled = true
db_path = "/tmp/journal.db"
`)

	// Set environment variable to point to the test config file
	t.Setenv("IPMIFANCTL_CONFIG", path)

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Monitor)
	assert.Equal(t, 3*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, 2*time.Second, cfg.CPU.IntervalDuration())
	assert.Equal(t, "Package id 0", cfg.CPU.SensorLabel)
	assert.Equal(t, 2*time.Minute, cfg.HDD.IntervalDuration())
	assert.Equal(t, []string{"/dev/sda", "/dev/sdb"}, cfg.HDD.Devices)
	assert.Equal(t, 2, cfg.HDD.Concurrency)
	assert.Equal(t, "0x30", cfg.Fan.Command[2])
	assert.True(t, cfg.Fan.HasExitDuty())
	assert.True(t, cfg.Journal.Metrics().Enabled)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Metrics().DBPath)

	table, err := cfg.CPU.Table()
	require.NoError(t, err)
	assert.Equal(t, curve.Duty(10), table.Select(50))

	policy, err := cfg.HDD.Policy()
	require.NoError(t, err)
	assert.Equal(t, control.PolicyRetain, policy)
}

func TestLoadDefaults(t *testing.T) {
	// Ensure no config file is used
	t.Setenv("IPMIFANCTL_CONFIG", "")

	cfg, err := config.Load(config.WithArgs(nil), config.WithConfigFile(""))
	if err != nil && errors.HasCode(err, errors.ErrReadConfig) {
		t.Skip("system configuration file present")
	}
	require.NoError(t, err)

	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.Monitor)
	assert.Equal(t, 10*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, 5*time.Second, cfg.CPU.IntervalDuration())
	assert.Equal(t, "sensors", cfg.CPU.SensorsPath)
	assert.Equal(t, "Tctl", cfg.CPU.SensorLabel)
	assert.Equal(t, time.Minute, cfg.HDD.IntervalDuration())
	assert.Equal(t, "smartctl", cfg.HDD.SmartctlPath)
	assert.Len(t, cfg.HDD.Devices, 12)
	assert.Equal(t, "/dev/sdl", cfg.HDD.Devices[11])
	assert.Equal(t, 1, cfg.HDD.Concurrency)
	assert.False(t, cfg.GPU.Enabled)
	assert.False(t, cfg.Fan.HasExitDuty())
	assert.False(t, cfg.Journal.Enabled)

	cpu, err := cfg.CPU.Table()
	require.NoError(t, err)
	assert.Equal(t, curve.Duty(6), cpu.Select(52.0))
	assert.Equal(t, curve.Duty(0), cpu.Select(46.9))

	hdd, err := cfg.HDD.Table()
	require.NoError(t, err)
	assert.Equal(t, curve.Duty(30), hdd.Select(61))

	policy, err := cfg.HDD.Policy()
	require.NoError(t, err)
	assert.Equal(t, control.PolicyIdle, policy)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, `
This is not a valid TOML file
`)

	t.Setenv("IPMIFANCTL_CONFIG", path)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.Contains(t, err.Error(), "Failed to read configuration")
}

func TestInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level = "invalid"
`)

	t.Setenv("IPMIFANCTL_CONFIG", path)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidThresholds(t *testing.T) {
	path := writeConfig(t, `
[hdd]
thresholds = [[60, 30], [55, 10]]
`)

	t.Setenv("IPMIFANCTL_CONFIG", path)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "hdd.thresholds")
}

func TestFlagsOverrideFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
log_level = "warning"

[cpu]
interval = 7
`)

	t.Setenv("IPMIFANCTL_CONFIG", path)
	t.Setenv("IPMIFANCTL_HDD_INTERVAL", "300")

	cfg, err := config.Load(config.WithArgs([]string{"--log-level", "debug", "--monitor", "--cpu-interval", "1"}))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
	assert.True(t, cfg.Monitor)
	assert.Equal(t, 1, cfg.CPU.Interval)
	assert.Equal(t, 300, cfg.HDD.Interval)
}

func TestConfigFlag(t *testing.T) {
	path := writeConfig(t, `
timeout = 4
`)

	t.Setenv("IPMIFANCTL_CONFIG", "")

	cfg, err := config.Load(config.WithArgs([]string{"--config", path}))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Timeout)
}

func TestHelpFlag(t *testing.T) {
	_, err := config.Load(config.WithArgs([]string{"--help"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestStatusCollectsEveryProblem(t *testing.T) {
	cfg := &config.Config{
		LogLevel: "info",
		Timeout:  0,
		CPU:      config.CPUConfig{Interval: 0, SensorLabel: "Tctl", Thresholds: config.DefaultCPUThresholds},
		HDD: config.HDDConfig{
			Interval:      60,
			Devices:       []string{"/dev/sda"},
			Concurrency:   1,
			OnUnavailable: "sometimes",
			Thresholds:    config.DefaultHDDThresholds,
		},
		Fan: config.FanConfig{Command: []string{"ipmitool", "raw"}, ExitDuty: 101},
	}

	status := cfg.Status()
	require.False(t, status.Valid)

	fields := make([]string, 0, len(status.ValidationErrors))
	for _, ve := range status.ValidationErrors {
		fields = append(fields, ve.Field())
	}
	assert.ElementsMatch(t,
		[]string{"timeout", "cpu.interval", "hdd.on_unavailable", "fan.command", "fan.exit_duty"},
		fields)
	assert.Equal(t, 101, status.ValidationErrors[len(status.ValidationErrors)-1].Value())
}
