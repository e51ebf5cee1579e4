package sensor

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
)

const (
	DefaultSensorsPath = "sensors"
	DefaultCPULabel    = "Tctl"
)

var tempValueRe = regexp.MustCompile(`^([+-]?\d+(?:\.\d+)?)\s*°C`)

// LMSensors reads the CPU temperature from lm-sensors text output.
type LMSensors struct {
	Path    string
	Label   string
	Timeout time.Duration
	Runner  Runner
}

// NewLMSensors returns a reader for the given sensor label, e.g. "Tctl"
// on AMD or "Package id 0" on Intel.
func NewLMSensors(path, label string, timeout time.Duration) *LMSensors {
	if path == "" {
		path = DefaultSensorsPath
	}
	if label == "" {
		label = DefaultCPULabel
	}

	return &LMSensors{
		Path:    path,
		Label:   label,
		Timeout: timeout,
		Runner:  ExecRunner{},
	}
}

func (s *LMSensors) Temperature(ctx context.Context) (float64, error) {
	out, err := runWithTimeout(ctx, s.Runner, s.Timeout, s.Path)
	if err != nil {
		return 0, err
	}

	return ParseSensorsLabel(out, s.Label)
}

// ParseSensorsLabel returns the first "<label>: +NN.N°C" value in out.
func ParseSensorsLabel(out []byte, label string) (float64, error) {
	errFactory := errors.New()
	prefix := label + ":"

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, prefix) {
			continue
		}

		rest := strings.TrimSpace(strings.TrimPrefix(line, prefix))
		m := tempValueRe.FindStringSubmatch(rest)
		if m == nil {
			continue
		}

		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, errFactory.Wrap(ErrParseFailed, err)
		}

		return v, nil
	}

	return 0, errFactory.WithData(ErrParseFailed, "no "+label+" temperature in sensors output")
}
