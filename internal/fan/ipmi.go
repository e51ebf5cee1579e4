package fan

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/curve"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
)

// CommandFunc runs argv and returns its combined output.
type CommandFunc func(ctx context.Context, argv []string) ([]byte, error)

// IPMI applies duty values by running a command template such as
// `ipmitool raw 0x3a 0x07 0xFF {duty} 0x01`.
type IPMI struct {
	template []string
	timeout  time.Duration
	run      CommandFunc
	logger   logger.Logger
}

func NewIPMI(template []string, timeout time.Duration, log logger.Logger) (*IPMI, error) {
	if err := ValidateCommand(template); err != nil {
		return nil, err
	}

	return &IPMI{
		template: append([]string(nil), template...),
		timeout:  timeout,
		run:      execCommand,
		logger:   log,
	}, nil
}

// WithCommandFunc swaps the process runner, mainly for tests.
func (a *IPMI) WithCommandFunc(fn CommandFunc) *IPMI {
	a.run = fn
	return a
}

// ValidateCommand checks that a template names a program and carries the
// duty placeholder.
func ValidateCommand(template []string) error {
	errFactory := errors.New()

	if len(template) == 0 || template[0] == "" {
		return errFactory.WithData(ErrInvalidCommand, "command is empty")
	}

	for _, arg := range template[1:] {
		if strings.Contains(arg, DutyPlaceholder) {
			return nil
		}
	}

	return errFactory.WithData(ErrInvalidCommand, "command has no "+DutyPlaceholder+" argument")
}

// Argv renders the command for duty.
func (a *IPMI) Argv(duty curve.Duty) []string {
	value := strconv.Itoa(int(duty))
	argv := make([]string, len(a.template))
	for i, arg := range a.template {
		argv[i] = strings.ReplaceAll(arg, DutyPlaceholder, value)
	}

	return argv
}

func (a *IPMI) Apply(ctx context.Context, duty curve.Duty) error {
	errFactory := errors.New()

	if duty < curve.MinDuty || duty > curve.MaxDuty {
		return errFactory.WithData(ErrDutyOutOfRange, int(duty))
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	argv := a.Argv(duty)
	a.logger.Info().
		Int("duty", int(duty)).
		Str("command", strings.Join(argv, " ")).
		Msg("Setting fan duty")

	out, err := a.run(ctx, argv)
	if ctx.Err() != nil {
		return errFactory.Wrap(ErrTimeout, ctx.Err()).WithData(int(duty))
	}
	if err != nil {
		return errFactory.Wrap(ErrApplyFailed, err).WithData(strings.TrimSpace(string(out)))
	}

	a.logger.Debug().Int("duty", int(duty)).Msg("Fan duty applied")

	return nil
}

func execCommand(ctx context.Context, argv []string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()

	return out.Bytes(), err
}
