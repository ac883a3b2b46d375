// Query Pipeline.
//
// Information Hiding:
// - Plan -> execute -> summarize sequencing hidden
// - Stage transitions reported through an optional hook
// - Per-step metrics collected alongside results

package orchestration

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/richinex/flightops/model"
	"github.com/richinex/flightops/tools"
)

// Stage is a pipeline phase.
type Stage int

const (
	StagePlanning Stage = iota
	StageExecuting
	StageSummarizing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StagePlanning:
		return "planning"
	case StageExecuting:
		return "executing"
	case StageSummarizing:
		return "summarizing"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// PlanGenerator produces a plan for a question. *Planner implements it.
type PlanGenerator interface {
	PlanTools(ctx context.Context, question string) model.Plan
}

// Invoker runs one tool step. *tools.Executor and *mcp.Client implement it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) tools.Result
}

// ResultSummarizer writes the final answer. *Summarizer implements it.
type ResultSummarizer interface {
	Summarize(ctx context.Context, question string, plan model.Plan, results []model.StepResult) string
}

// StageHook observes stage transitions.
type StageHook func(stage Stage)

// Pipeline answers one question at a time. It holds no per-run state and
// is safe for concurrent use if its collaborators are.
type Pipeline struct {
	planner    PlanGenerator
	invoker    Invoker
	summarizer ResultSummarizer
	hook       StageHook
	logger     *slog.Logger
}

// NewPipeline wires the three collaborators.
func NewPipeline(planner PlanGenerator, invoker Invoker, summarizer ResultSummarizer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		planner:    planner,
		invoker:    invoker,
		summarizer: summarizer,
		logger:     logger,
	}
}

// WithStageHook sets the stage observer and returns p.
func (p *Pipeline) WithStageHook(hook StageHook) *Pipeline {
	p.hook = hook
	return p
}

func (p *Pipeline) enter(stage Stage) {
	p.logger.Debug("pipeline stage", "stage", stage.String())
	if p.hook != nil {
		p.hook(stage)
	}
}

// RunQuery plans, executes each step in order, and summarizes. Step
// failures are recorded in the results and do not stop the run. An empty
// plan returns a *PipelineError with ErrCodeNoValidPlan and no tool is called.
func (p *Pipeline) RunQuery(ctx context.Context, question string) (model.RunResult, error) {
	if strings.TrimSpace(question) == "" {
		return model.RunResult{}, newValidationError("question is required")
	}

	p.enter(StagePlanning)
	plan := p.planner.PlanTools(ctx, question)
	if len(plan) == 0 {
		if err := ctx.Err(); err != nil {
			return model.RunResult{}, newCancelledError(StagePlanning, err)
		}
		p.logger.Warn("no valid plan", "question", question)
		return model.RunResult{}, newNoValidPlanError()
	}

	p.enter(StageExecuting)
	results := make([]model.StepResult, 0, len(plan))
	calls := make([]model.ToolCall, 0, len(plan))
	for i, step := range plan {
		if err := ctx.Err(); err != nil {
			return model.RunResult{}, newCancelledError(StageExecuting, err)
		}
		name := strings.TrimSpace(step.Tool)
		if name == "" {
			p.logger.Warn("skipping plan step without tool", "step", i)
			continue
		}

		args := tools.SanitizeArgs(step.Arguments)
		start := time.Now()
		result := p.invoker.Invoke(ctx, name, args)
		duration := time.Since(start)

		results = append(results, model.StepResult{Tool: name, Result: result})
		calls = append(calls, toolCall(name, args, result, duration))
		p.logger.Info("tool executed",
			"tool", name,
			"ok", result.OK,
			"duration_ms", duration.Milliseconds(),
		)
	}

	if err := ctx.Err(); err != nil {
		return model.RunResult{}, newCancelledError(StageSummarizing, err)
	}
	p.enter(StageSummarizing)
	summary := p.summarizer.Summarize(ctx, question, plan, results)

	p.enter(StageDone)
	return model.RunResult{
		Plan:    plan,
		Results: results,
		Summary: summary,
		Calls:   calls,
	}, nil
}

func toolCall(name string, args map[string]any, result tools.Result, d time.Duration) model.ToolCall {
	in, _ := json.Marshal(args)
	out, _ := json.Marshal(result)
	call := model.ToolCall{
		Name:       name,
		InputSize:  len(in),
		OutputSize: len(out),
		DurationMs: uint64(d.Milliseconds()),
		Success:    result.OK,
	}
	if !result.OK {
		call.Code = result.Code
	}
	return call
}
