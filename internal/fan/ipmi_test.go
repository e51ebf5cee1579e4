package fan_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/curve"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/fan"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand(t *testing.T) {
	require.NoError(t, fan.ValidateCommand(fan.DefaultCommand))
	require.Error(t, fan.ValidateCommand(nil))
	require.Error(t, fan.ValidateCommand([]string{"", "{duty}"}))

	err := fan.ValidateCommand([]string{"ipmitool", "raw", "0x3a"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, fan.ErrInvalidCommand))
}

func TestIPMIArgv(t *testing.T) {
	a, err := fan.NewIPMI(fan.DefaultCommand, time.Second, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"ipmitool", "raw", "0x3a", "0x07", "0xFF", "35", "0x01"},
		a.Argv(35))
}

func TestIPMIApply(t *testing.T) {
	var got []string
	a, err := fan.NewIPMI(fan.DefaultCommand, time.Second, logger.Nop())
	require.NoError(t, err)
	a.WithCommandFunc(func(_ context.Context, argv []string) ([]byte, error) {
		got = argv
		return nil, nil
	})

	require.NoError(t, a.Apply(context.Background(), 20))
	assert.Equal(t, "20", got[5])
}

func TestIPMIApplyFailure(t *testing.T) {
	a, err := fan.NewIPMI(fan.DefaultCommand, time.Second, logger.Nop())
	require.NoError(t, err)
	a.WithCommandFunc(func(_ context.Context, _ []string) ([]byte, error) {
		return []byte("Unable to send RAW command\n"), fmt.Errorf("exit status 1")
	})

	err = a.Apply(context.Background(), 35)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrActuatorFailed))
	assert.Contains(t, err.Error(), "Unable to send RAW command")
}

func TestIPMIApplyTimeout(t *testing.T) {
	a, err := fan.NewIPMI(fan.DefaultCommand, 20*time.Millisecond, logger.Nop())
	require.NoError(t, err)
	a.WithCommandFunc(func(ctx context.Context, _ []string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	err = a.Apply(context.Background(), 35)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTimeout))
}

func TestIPMIApplyRejectsOutOfRange(t *testing.T) {
	called := false
	a, err := fan.NewIPMI(fan.DefaultCommand, time.Second, logger.Nop())
	require.NoError(t, err)
	a.WithCommandFunc(func(_ context.Context, _ []string) ([]byte, error) {
		called = true
		return nil, nil
	})

	require.Error(t, a.Apply(context.Background(), curve.Duty(101)))
	assert.False(t, called)
}

func TestMonitorNeverFails(t *testing.T) {
	m := fan.NewMonitor(logger.Nop())
	assert.NoError(t, m.Apply(context.Background(), 100))
}
