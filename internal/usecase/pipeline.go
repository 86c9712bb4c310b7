package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Step is one stage of the pipeline.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pipeline runs steps in order and stops at the first failure.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

func NewPipeline(logger *slog.Logger, steps ...Step) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{steps: steps, logger: logger}
}

// PipelineResult reports what a run did.
type PipelineResult struct {
	RunID     string
	Completed []string
	Duration  time.Duration
}

// Run executes every step. A failing step ends the run; its error is
// returned wrapped with the step name and later steps are not started.
func (p *Pipeline) Run(ctx context.Context) (*PipelineResult, error) {
	result := &PipelineResult{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", result.RunID)
	started := time.Now()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("step %s: %w", step.Name, err)
		}

		logger.Info("Running step", "step", step.Name)
		stepStart := time.Now()
		if err := step.Run(ctx); err != nil {
			logger.Error("Step failed", "step", step.Name, "error", err)
			return result, fmt.Errorf("step %s: %w", step.Name, err)
		}
		logger.Info("Step succeeded", "step", step.Name, "duration", time.Since(stepStart))
		result.Completed = append(result.Completed, step.Name)
	}

	result.Duration = time.Since(started)
	logger.Info("All steps completed", "steps", len(result.Completed), "duration", result.Duration)
	return result, nil
}
