package sensor

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
)

const DefaultSmartctlPath = "smartctl"

// smartctl exit status bits 0-2 mean the output is unusable; the higher
// bits report disk health and still come with a full attribute table.
const smartctlFatalBits = 0b111

var (
	scsiTempRe = regexp.MustCompile(`^Current Drive Temperature:\s+(\d+)\s*C`)
	nvmeTempRe = regexp.MustCompile(`^Temperature:\s+(\d+)\s+Celsius`)
	leadingInt = regexp.MustCompile(`^\d+`)
)

// Smartctl reads drive temperatures with `smartctl -A <device>`.
type Smartctl struct {
	Path    string
	Timeout time.Duration
	Runner  Runner
}

func NewSmartctl(path string, timeout time.Duration) *Smartctl {
	if path == "" {
		path = DefaultSmartctlPath
	}

	return &Smartctl{
		Path:    path,
		Timeout: timeout,
		Runner:  ExecRunner{},
	}
}

func (s *Smartctl) Temperature(ctx context.Context, device string) (float64, error) {
	out, err := runWithTimeout(ctx, s.Runner, s.Timeout, s.Path, "-A", device)
	if err != nil && !isSmartctlWarning(err) {
		return 0, err
	}

	return ParseSmartctl(out)
}

func isSmartctlWarning(err error) bool {
	if errors.HasCode(err, ErrTimeout) {
		return false
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}

	code := exitErr.ExitCode()

	return code > 0 && code&smartctlFatalBits == 0
}

// ParseSmartctl extracts the drive temperature from `smartctl -A` output.
// SCSI "Current Drive Temperature" wins, then NVMe "Temperature", then the
// raw value of ATA attribute 194 and finally attribute 190.
func ParseSmartctl(out []byte) (float64, error) {
	errFactory := errors.New()
	attrs := map[string]float64{}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if m := scsiTempRe.FindStringSubmatch(line); m != nil {
			return strconv.ParseFloat(m[1], 64)
		}
		if m := nvmeTempRe.FindStringSubmatch(line); m != nil {
			return strconv.ParseFloat(m[1], 64)
		}

		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}
		if fields[0] != "194" && fields[0] != "190" {
			continue
		}
		if !strings.Contains(fields[1], "Temperature") {
			continue
		}

		raw := leadingInt.FindString(fields[9])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		attrs[fields[0]] = v
	}

	if v, ok := attrs["194"]; ok {
		return v, nil
	}
	if v, ok := attrs["190"]; ok {
		return v, nil
	}

	return 0, errFactory.WithData(ErrParseFailed, "no drive temperature in smartctl output")
}
