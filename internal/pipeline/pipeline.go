package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/docscrawl/internal/model"
)

// Step is one stage of a pipeline. Steps receive the report accumulated by
// the steps before them.
type Step interface {
	// Do executes the step. Per-page problems belong in the report;
	// an error means the step itself could not do its work.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps run in order until one fails or the context is cancelled.
	steps []Step

	// finals run after steps, whatever happened to them.
	finals []Step

	logger *slog.Logger

	// continueOnError keeps executing steps after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue with the next
// step when one fails. The errors are joined and returned at the end.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalSteps appends steps that run after the regular steps even when
// one of them failed or the context was cancelled. They receive a context
// that is not cancelled with the caller's.
func (p *Pipeline) AddFinalSteps(steps ...Step) {
	p.finals = append(p.finals, steps...)
}

// Execute runs the regular steps in order, then the final steps.
//
// Cancellation is checked between regular steps; a step in progress is
// expected to honor ctx itself. All step errors, and the cancellation
// error if any, are joined into the returned error.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	var errs []error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			errs = append(errs, err)
			break
		}
		if err := p.run(ctx, step, report); err != nil {
			errs = append(errs, err)
			if !p.continueOnError {
				break
			}
		}
	}

	finalCtx := context.WithoutCancel(ctx)
	for _, step := range p.finals {
		if err := p.run(finalCtx, step, report); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (p *Pipeline) run(ctx context.Context, step Step, report *model.CrawlReport) error {
	log := p.logger.With("step", step.Name(), "start_url", report.StartURL)
	log.Debug("executing step")

	started := time.Now()
	err := step.Do(ctx, report)
	elapsed := time.Since(started).Round(time.Millisecond)
	if err != nil {
		log.Error("step failed", "elapsed", elapsed, "error", err)
		return err
	}
	log.Debug("step completed", "elapsed", elapsed)
	return nil
}

// StepCount returns the number of steps in the pipeline, final steps included.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finals)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finals {
		names = append(names, step.Name())
	}
	return names
}
