package control

import (
	"context"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/curve"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
)

// Probe samples one domain per tick.
type Probe interface {
	Domain() Domain
	Interval() time.Duration
	Sample(ctx context.Context) Sample
}

// TemperatureReader reports a single temperature for a whole domain.
type TemperatureReader interface {
	Temperature(ctx context.Context) (float64, error)
}

// SensorProbe samples a domain backed by one TemperatureReader. A failed
// read yields an invalid Sample, so the domain keeps its last duty.
type SensorProbe struct {
	domain   Domain
	reader   TemperatureReader
	table    curve.Table
	interval time.Duration
	logger   logger.Logger
}

// NewCPUProbe returns the CPU domain probe.
func NewCPUProbe(reader TemperatureReader, table curve.Table, interval time.Duration, log logger.Logger) *SensorProbe {
	return newSensorProbe(CPU, reader, table, interval, log)
}

// NewGPUProbe returns the GPU domain probe.
func NewGPUProbe(reader TemperatureReader, table curve.Table, interval time.Duration, log logger.Logger) *SensorProbe {
	return newSensorProbe(GPU, reader, table, interval, log)
}

func newSensorProbe(
	domain Domain, reader TemperatureReader, table curve.Table, interval time.Duration, log logger.Logger,
) *SensorProbe {
	return &SensorProbe{
		domain:   domain,
		reader:   reader,
		table:    table,
		interval: interval,
		logger:   log,
	}
}

func (p *SensorProbe) Domain() Domain {
	return p.domain
}

func (p *SensorProbe) Interval() time.Duration {
	return p.interval
}

func (p *SensorProbe) Sample(ctx context.Context) Sample {
	temp, err := p.reader.Temperature(ctx)
	if err != nil {
		p.logger.WarnWithCode(errors.New().Wrap(ErrReadingUnavailable, err)).
			Str("domain", p.domain.String()).
			Msg("Could not read temperature; keeping previous duty")
		return Sample{}
	}

	duty := p.table.Select(temp)
	p.logger.Info().
		Str("domain", p.domain.String()).
		Float64("temperature", temp).
		Int("duty", int(duty)).
		Msg("Temperature sampled")

	return Sample{Duty: duty, Temperature: temp, Valid: true}
}
