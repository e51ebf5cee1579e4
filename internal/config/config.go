package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/control"
	"codeberg.org/mutker/ipmifanctl/internal/curve"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/fan"
	"codeberg.org/mutker/ipmifanctl/internal/metrics"
	"codeberg.org/mutker/ipmifanctl/internal/pid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel  = "info"
	DefaultEnvPrefix = "IPMIFANCTL"
	DefaultTimeout   = 10
	configName       = "ipmifanctl"
	configDir        = "/etc"
	noExitDuty       = -1
)

var (
	DefaultCPUThresholds = [][]float64{
		{0, 0}, {47, 1}, {48, 2}, {49, 3}, {50, 4}, {51, 5}, {52, 6},
		{53, 7}, {54, 8}, {55, 10}, {60, 20}, {65, 25}, {70, 35}, {75, 100},
	}
	DefaultHDDThresholds = [][]float64{
		{0, 0}, {55, 10}, {58, 20}, {60, 30}, {65, 50}, {75, 100},
	}
	DefaultGPUThresholds = [][]float64{
		{0, 0}, {60, 20}, {70, 40}, {80, 70}, {85, 100},
	}
	DefaultDevices = []string{
		"/dev/sda", "/dev/sdb", "/dev/sdc", "/dev/sdd", "/dev/sde", "/dev/sdf",
		"/dev/sdg", "/dev/sdh", "/dev/sdi", "/dev/sdj", "/dev/sdk", "/dev/sdl",
	}
)

type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	Monitor  bool          `mapstructure:"monitor"`
	Timeout  int           `mapstructure:"timeout"`
	PIDFile  string        `mapstructure:"pid_file"`
	CPU      CPUConfig     `mapstructure:"cpu"`
	HDD      HDDConfig     `mapstructure:"hdd"`
	GPU      GPUConfig     `mapstructure:"gpu"`
	Fan      FanConfig     `mapstructure:"fan"`
	Journal  JournalConfig `mapstructure:"journal"`
}

type CPUConfig struct {
	Interval    int         `mapstructure:"interval"`
	SensorsPath string      `mapstructure:"sensors_path"`
	SensorLabel string      `mapstructure:"sensor_label"`
	Thresholds  [][]float64 `mapstructure:"thresholds"`
}

type HDDConfig struct {
	Interval      int         `mapstructure:"interval"`
	SmartctlPath  string      `mapstructure:"smartctl_path"`
	Devices       []string    `mapstructure:"devices"`
	Concurrency   int         `mapstructure:"concurrency"`
	OnUnavailable string      `mapstructure:"on_unavailable"`
	Thresholds    [][]float64 `mapstructure:"thresholds"`
}

type GPUConfig struct {
	Enabled    bool        `mapstructure:"enabled"`
	Interval   int         `mapstructure:"interval"`
	Thresholds [][]float64 `mapstructure:"thresholds"`
}

type FanConfig struct {
	Command  []string `mapstructure:"command"`
	ExitDuty int      `mapstructure:"exit_duty"`
}

type JournalConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DBPath       string `mapstructure:"db_path"`
	BatchSize    int    `mapstructure:"batch_size"`
	BatchTimeout int    `mapstructure:"batch_timeout"`
}

// Load reads configuration from defaults, the TOML file, the environment
// and command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix: DefaultEnvPrefix,
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, fs, o); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("monitor", false)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("pid_file", pid.DefaultPath())

	v.SetDefault("cpu.interval", 5)
	v.SetDefault("cpu.sensors_path", "sensors")
	v.SetDefault("cpu.sensor_label", "Tctl")
	v.SetDefault("cpu.thresholds", DefaultCPUThresholds)

	v.SetDefault("hdd.interval", 60)
	v.SetDefault("hdd.smartctl_path", "smartctl")
	v.SetDefault("hdd.devices", DefaultDevices)
	v.SetDefault("hdd.concurrency", 1)
	v.SetDefault("hdd.on_unavailable", string(control.PolicyIdle))
	v.SetDefault("hdd.thresholds", DefaultHDDThresholds)

	v.SetDefault("gpu.enabled", false)
	v.SetDefault("gpu.interval", 5)
	v.SetDefault("gpu.thresholds", DefaultGPUThresholds)

	v.SetDefault("fan.command", fan.DefaultCommand)
	v.SetDefault("fan.exit_duty", noExitDuty)

	journal := metrics.DefaultConfig()
	v.SetDefault("journal.enabled", journal.Enabled)
	v.SetDefault("journal.db_path", journal.DBPath)
	v.SetDefault("journal.batch_size", journal.BatchSize)
	v.SetDefault("journal.batch_timeout", journal.BatchTimeout)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("ipmifanctl", pflag.ContinueOnError)
	fs.String("config", "", "Path to configuration file")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("monitor", false, "Only sample and log, never set fan duty")
	fs.Int("timeout", DefaultTimeout, "Timeout in seconds for each external command")
	fs.String("pid-file", pid.DefaultPath(), "Path to PID file")
	fs.Int("cpu-interval", 5, "Seconds between CPU temperature checks")
	fs.Int("hdd-interval", 60, "Seconds between drive temperature checks")

	return fs
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"log_level":    "log-level",
		"monitor":      "monitor",
		"timeout":      "timeout",
		"pid_file":     "pid-file",
		"cpu.interval": "cpu-interval",
		"hdd.interval": "hdd-interval",
	}

	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return err
		}
	}

	return nil
}

func readConfigFile(v *viper.Viper, fs *pflag.FlagSet, o *options) error {
	errFactory := errors.New()

	path := o.configPath
	if flagPath, _ := fs.GetString("config"); flagPath != "" {
		path = flagPath
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}

		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks every field and reports the first problems found as an
// invalid_configuration error.
func (c *Config) Validate() error {
	status := c.Status()
	if status.Valid {
		return nil
	}

	errFactory := errors.New()
	first := status.ValidationErrors[0]
	if first.Field() == "log_level" {
		return errFactory.Wrap(errors.ErrInvalidLogLevel, first)
	}

	reasons := make([]string, 0, len(status.ValidationErrors))
	for _, ve := range status.ValidationErrors {
		reasons = append(reasons, ve.Error())
	}

	return errFactory.WithData(errors.ErrInvalidConfig, strings.Join(reasons, "; "))
}

// Status collects every validation error in the configuration.
func (c *Config) Status() Status {
	var errs []ValidationError
	invalid := func(field string, value interface{}, reason string) {
		errs = append(errs, &validationError{field: field, value: value, reason: reason})
	}

	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		invalid("log_level", c.LogLevel, "must be one of debug, info, warning, error")
	}
	if c.Timeout <= 0 {
		invalid("timeout", c.Timeout, "must be positive")
	}
	if c.CPU.Interval <= 0 {
		invalid("cpu.interval", c.CPU.Interval, "must be positive")
	}
	if c.CPU.SensorLabel == "" {
		invalid("cpu.sensor_label", c.CPU.SensorLabel, "must not be empty")
	}
	if _, err := curve.FromPairs(c.CPU.Thresholds); err != nil {
		invalid("cpu.thresholds", c.CPU.Thresholds, err.Error())
	}
	if c.HDD.Interval <= 0 {
		invalid("hdd.interval", c.HDD.Interval, "must be positive")
	}
	if len(c.HDD.Devices) == 0 {
		invalid("hdd.devices", c.HDD.Devices, "must list at least one device")
	}
	if c.HDD.Concurrency < 1 {
		invalid("hdd.concurrency", c.HDD.Concurrency, "must be at least 1")
	}
	if _, err := control.ParseUnavailablePolicy(c.HDD.OnUnavailable); err != nil {
		invalid("hdd.on_unavailable", c.HDD.OnUnavailable, "must be idle or retain")
	}
	if _, err := curve.FromPairs(c.HDD.Thresholds); err != nil {
		invalid("hdd.thresholds", c.HDD.Thresholds, err.Error())
	}
	if c.GPU.Enabled {
		if c.GPU.Interval <= 0 {
			invalid("gpu.interval", c.GPU.Interval, "must be positive")
		}
		if _, err := curve.FromPairs(c.GPU.Thresholds); err != nil {
			invalid("gpu.thresholds", c.GPU.Thresholds, err.Error())
		}
	}
	if err := fan.ValidateCommand(c.Fan.Command); err != nil {
		invalid("fan.command", c.Fan.Command, err.Error())
	}
	if c.Fan.ExitDuty < noExitDuty || c.Fan.ExitDuty > int(curve.MaxDuty) {
		invalid("fan.exit_duty", c.Fan.ExitDuty, "must be -1 or a duty between 0 and 100")
	}
	if err := c.Journal.Metrics().Validate(); err != nil {
		invalid("journal", c.Journal.DBPath, err.Error())
	}

	return Status{Valid: len(errs) == 0, ValidationErrors: errs}
}

// TimeoutDuration is the bound on every external command.
func (c *Config) TimeoutDuration() time.Duration {
	return seconds(c.Timeout)
}

// HasExitDuty reports whether a duty should be applied on shutdown.
func (c FanConfig) HasExitDuty() bool {
	return c.ExitDuty > noExitDuty
}

func (c CPUConfig) IntervalDuration() time.Duration {
	return seconds(c.Interval)
}

func (c CPUConfig) Table() (curve.Table, error) {
	return curve.FromPairs(c.Thresholds)
}

func (c HDDConfig) IntervalDuration() time.Duration {
	return seconds(c.Interval)
}

func (c HDDConfig) Table() (curve.Table, error) {
	return curve.FromPairs(c.Thresholds)
}

func (c HDDConfig) Policy() (control.UnavailablePolicy, error) {
	return control.ParseUnavailablePolicy(c.OnUnavailable)
}

func (c GPUConfig) IntervalDuration() time.Duration {
	return seconds(c.Interval)
}

func (c GPUConfig) Table() (curve.Table, error) {
	return curve.FromPairs(c.Thresholds)
}

// Metrics converts the journal section to the metrics package config.
func (c JournalConfig) Metrics() metrics.Config {
	return metrics.Config{
		DBPath:       c.DBPath,
		BatchSize:    c.BatchSize,
		BatchTimeout: c.BatchTimeout,
		Enabled:      c.Enabled,
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
