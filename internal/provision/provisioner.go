package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"hsetup/internal/theme"
)

// Provisioner executes steps strictly in order
type Provisioner struct {
	out io.Writer
	log logrus.FieldLogger
	now func() time.Time
}

// New creates a Provisioner writing progress to out and records to log
func New(out io.Writer, log logrus.FieldLogger) *Provisioner {
	return &Provisioner{out: out, log: log, now: time.Now}
}

// Run executes steps in order and returns one Result per step. On the first
// fatal failure it stops and returns a *StepError; the remaining results stay
// StatusPending.
func (p *Provisioner) Run(ctx context.Context, steps []Step) ([]Result, error) {
	results := make([]Result, len(steps))
	for i, s := range steps {
		results[i] = Result{Index: i + 1, Name: s.Name, Status: StatusPending}
	}

	for i, s := range steps {
		res := &results[i]
		fields := logrus.Fields{"step": s.Name, "index": res.Index}

		fmt.Fprintf(p.out, "%s %s\n",
			theme.StepStyle.Render(fmt.Sprintf("[%d/%d]", res.Index, len(steps))), s.Name)

		start := p.now()
		status, err := p.runStep(ctx, s)
		res.Duration = p.now().Sub(start)
		res.Status = status
		res.Err = err

		entry := p.log.WithFields(fields).WithFields(logrus.Fields{
			"status":   status,
			"duration": res.Duration.Round(time.Millisecond).String(),
		})

		switch status {
		case StatusSkipped:
			entry.Info("step already satisfied")
			fmt.Fprintln(p.out, "  "+theme.SkipMessage("already done"))
		case StatusTolerated:
			entry.WithError(err).Info("step tolerated")
			fmt.Fprintln(p.out, "  "+theme.SkipMessage(err.Error()))
		case StatusDone:
			entry.Info("step completed")
			fmt.Fprintln(p.out, "  "+theme.SuccessMessage("done"))
		case StatusFailed:
			entry.WithError(err).Error("step failed")
			stepErr := &StepError{Index: res.Index, Name: s.Name, Err: err}
			fmt.Fprintln(p.out, "  "+theme.ErrorMessage(err.Error()))
			return results, stepErr
		}
	}

	return results, nil
}

func (p *Provisioner) runStep(ctx context.Context, s Step) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusFailed, fmt.Errorf("aborted: %w", err)
	}

	if s.Action == nil {
		return StatusFailed, errors.New("step has no action")
	}

	if s.Satisfied != nil {
		done, err := s.Satisfied(ctx)
		if err != nil {
			return StatusFailed, fmt.Errorf("checking state: %w", err)
		}
		if done {
			return StatusSkipped, nil
		}
	}

	err := s.Action(ctx)
	switch {
	case err == nil:
		return StatusDone, nil
	case errors.Is(err, context.Canceled):
		// Interrupts from a progress UI cancel a child of ctx, not ctx itself
		return StatusFailed, fmt.Errorf("aborted: %w", err)
	case s.Tolerate != nil && s.Tolerate(err):
		return StatusTolerated, err
	default:
		return StatusFailed, err
	}
}

// Plan writes the steps that would run, without executing anything
func (p *Provisioner) Plan(steps []Step) []Result {
	results := make([]Result, len(steps))
	for i, s := range steps {
		results[i] = Result{Index: i + 1, Name: s.Name, Status: StatusPending}

		fmt.Fprintf(p.out, "%s %s\n",
			theme.StepStyle.Render(fmt.Sprintf("[%d/%d]", i+1, len(steps))), s.Name)
		if s.Describe != nil {
			if detail := s.Describe(); detail != "" {
				fmt.Fprintln(p.out, "  "+theme.Faint.Render(detail))
			}
		}
	}
	return results
}

// Summarize counts results by status
func Summarize(results []Result) map[Status]int {
	counts := make(map[Status]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
