package saga

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRun_AllStepsSucceed(t *testing.T) {
	var order []string
	s := New("test", quietLogger()).
		Add(Step{Name: "a", Do: func(context.Context) error { order = append(order, "a"); return nil }}).
		Add(Step{Name: "b", Do: func(context.Context) error { order = append(order, "b"); return nil }})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRun_CompensatesInReverseOrder(t *testing.T) {
	boom := errors.New("boom")
	var undone []string
	s := New("test", quietLogger()).
		Add(Step{
			Name:       "a",
			Do:         func(context.Context) error { return nil },
			Compensate: func(context.Context) error { undone = append(undone, "a"); return nil },
		}).
		Add(Step{
			Name:       "b",
			Do:         func(context.Context) error { return nil },
			Compensate: func(context.Context) error { undone = append(undone, "b"); return nil },
		}).
		Add(Step{
			Name:       "c",
			Do:         func(context.Context) error { return boom },
			Compensate: func(context.Context) error { undone = append(undone, "c"); return nil },
		})

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "c", FailedStep(err))
	assert.Equal(t, []string{"b", "a"}, undone)
}

func TestRun_CompensationErrorDoesNotMaskCause(t *testing.T) {
	boom := errors.New("boom")
	s := New("test", quietLogger()).
		Add(Step{
			Name:       "a",
			Do:         func(context.Context) error { return nil },
			Compensate: func(context.Context) error { return errors.New("undo failed") },
		}).
		Add(Step{Name: "b", Do: func(context.Context) error { return boom }})

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, boom)
}

func TestRun_CompensationRunsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensatedErr error
	s := New("test", quietLogger()).
		Add(Step{
			Name: "a",
			Do:   func(context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compensatedErr = ctx.Err()
				return nil
			},
		}).
		Add(Step{Name: "b", Do: func(context.Context) error { cancel(); return context.Canceled }})

	_ = s.Run(ctx)

	assert.NoError(t, compensatedErr)
}

func TestFailedStep_NonSagaError(t *testing.T) {
	assert.Equal(t, "", FailedStep(errors.New("plain")))
}
