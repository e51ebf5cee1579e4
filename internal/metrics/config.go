package metrics

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/ipmifanctl/journal.db"
	defaultBatchSize    = 12
	defaultBatchTimeout = 60
)

type Config struct {
	DBPath       string
	BatchSize    int
	BatchTimeout int // seconds
	Enabled      bool
	BackupDir    string
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Enabled:      false,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the rest if the journal is enabled
	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 1 {
		return errFactory.WithData(ErrInvalidConfig, "batch_size must be at least 1")
	}
	if c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, "batch_timeout must not be negative")
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
