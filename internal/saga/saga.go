// Package saga runs a sequence of steps and undoes the completed ones, in
// reverse order, when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type Step struct {
	Name string
	Do   func(ctx context.Context) error
	// Compensate undoes Do. It is optional and only called if Do succeeded.
	Compensate func(ctx context.Context) error
}

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

type Saga struct {
	name   string
	steps  []Step
	logger *logrus.Logger
}

func New(name string, logger *logrus.Logger) *Saga {
	return &Saga{name: name, logger: logger}
}

func (s *Saga) Add(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes the steps in order. On failure every completed step is
// compensated and the original error is returned wrapped in a StepError.
// Compensation failures are logged, not returned.
func (s *Saga) Run(ctx context.Context) error {
	done := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if err := step.Do(ctx); err != nil {
			s.compensate(ctx, done, step.Name, err)
			return &StepError{Step: step.Name, Err: err}
		}
		done = append(done, step)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []Step, failed string, cause error) {
	// The caller's context may already be cancelled; compensation still has to run.
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.WithFields(logrus.Fields{
				"saga":                s.name,
				"step":                step.Name,
				"failed_step":         failed,
				"cause":               cause.Error(),
				"consistency_warning": true,
			}).WithError(err).Error("compensation failed")
		}
	}
}

// FailedStep returns the name of the failed step, or "" if err did not come from a saga.
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
