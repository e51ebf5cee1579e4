package control

import (
	"context"
	"strings"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/curve"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"golang.org/x/sync/errgroup"
)

// UnavailablePolicy decides the drive-set duty when no drive reports.
type UnavailablePolicy string

const (
	// PolicyIdle treats the drive set as 0°C, which maps to the table floor.
	PolicyIdle UnavailablePolicy = "idle"
	// PolicyRetain keeps the previous drive-set duty.
	PolicyRetain UnavailablePolicy = "retain"
)

// ParseUnavailablePolicy accepts "idle" or "retain"; empty means idle.
func ParseUnavailablePolicy(s string) (UnavailablePolicy, error) {
	switch UnavailablePolicy(strings.ToLower(s)) {
	case PolicyIdle, "":
		return PolicyIdle, nil
	case PolicyRetain:
		return PolicyRetain, nil
	default:
		return "", errors.New().WithData(errors.ErrInvalidConfig, "unknown on_unavailable policy "+s)
	}
}

// DriveReader reports the temperature of one storage device.
type DriveReader interface {
	Temperature(ctx context.Context, device string) (float64, error)
}

// DeviceReading is one device's result for one tick.
type DeviceReading struct {
	Device      string
	Temperature float64
	Err         error
}

// DriveProbe samples every configured device and drives the HDD domain
// from the hottest one, since all drives share the same airflow.
type DriveProbe struct {
	reader      DriveReader
	devices     []string
	table       curve.Table
	interval    time.Duration
	concurrency int
	policy      UnavailablePolicy
	logger      logger.Logger
}

type DriveProbeOption func(*DriveProbe)

// WithConcurrency bounds how many devices are queried at once.
func WithConcurrency(n int) DriveProbeOption {
	return func(p *DriveProbe) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithUnavailablePolicy sets what happens when no device reports.
func WithUnavailablePolicy(policy UnavailablePolicy) DriveProbeOption {
	return func(p *DriveProbe) {
		p.policy = policy
	}
}

func NewDriveProbe(
	reader DriveReader, devices []string, table curve.Table, interval time.Duration, log logger.Logger,
	opts ...DriveProbeOption,
) *DriveProbe {
	p := &DriveProbe{
		reader:      reader,
		devices:     append([]string(nil), devices...),
		table:       table,
		interval:    interval,
		concurrency: 1,
		policy:      PolicyIdle,
		logger:      log,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *DriveProbe) Domain() Domain {
	return HDD
}

func (p *DriveProbe) Interval() time.Duration {
	return p.interval
}

// ReadAll queries every device. A failing device never aborts the others.
func (p *DriveProbe) ReadAll(ctx context.Context) []DeviceReading {
	readings := make([]DeviceReading, len(p.devices))

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, device := range p.devices {
		i, device := i, device
		g.Go(func() error {
			temp, err := p.reader.Temperature(ctx, device)
			readings[i] = DeviceReading{Device: device, Temperature: temp, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return readings
}

func (p *DriveProbe) Sample(ctx context.Context) Sample {
	p.logger.Debug().Int("devices", len(p.devices)).Msg("Checking drive temperatures")

	maxTemp := 0.0
	found := 0
	for _, r := range p.ReadAll(ctx) {
		if r.Err != nil {
			p.logger.WarnWithCode(errors.New().Wrap(ErrReadingUnavailable, r.Err)).
				Str("device", r.Device).
				Msg("Could not read drive temperature")
			continue
		}

		found++
		p.logger.Debug().
			Str("device", r.Device).
			Float64("temperature", r.Temperature).
			Msg("Drive temperature")

		if r.Temperature > maxTemp {
			maxTemp = r.Temperature
		}
	}

	if found == 0 {
		p.logger.WarnWithCode(errors.New().New(ErrAllDevicesUnavailable)).
			Str("domain", HDD.String()).
			Str("policy", string(p.policy)).
			Int("devices", len(p.devices)).
			Msg("No drive reported a temperature")

		if p.policy == PolicyRetain {
			return Sample{}
		}
	}

	duty := p.table.Select(maxTemp)
	p.logger.Info().
		Str("domain", HDD.String()).
		Float64("temperature", maxTemp).
		Int("reporting", found).
		Int("duty", int(duty)).
		Msg("Temperature sampled")

	return Sample{Duty: duty, Temperature: maxTemp, Valid: true}
}
