// Package model provides domain types shared across packages.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/richinex/flightops/tools"
)

// PlanStep is one tool invocation proposed by the planner. It has no
// identity beyond its position in the Plan.
type PlanStep struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Plan is an ordered list of steps. An empty plan means the question
// could not be mapped to any tool.
type Plan []PlanStep

// StepResult pairs a tool name with its outcome. It encodes as
// {"<tool>": <result envelope>}.
type StepResult struct {
	Tool   string
	Result tools.Result
}

// MarshalJSON implements the single-key encoding.
func (s StepResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]tools.Result{s.Tool: s.Result})
}

// UnmarshalJSON decodes the single-key encoding.
func (s *StepResult) UnmarshalJSON(data []byte) error {
	var m map[string]tools.Result
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("step result must have exactly one key, got %d", len(m))
	}
	for tool, res := range m {
		s.Tool, s.Result = tool, res
	}
	return nil
}

// ToolCall contains metrics about a tool invocation.
// Used for logging and run history; not part of the caller-facing result.
type ToolCall struct {
	Name       string `json:"name"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
	DurationMs uint64 `json:"duration_ms"`
	Success    bool   `json:"success"`
	Code       int    `json:"code,omitempty"`
}

// RunResult is the answer to one question.
type RunResult struct {
	Plan    Plan
	Results []StepResult
	Summary string
	Calls   []ToolCall
}

// Summary wraps the summarizer text as {"summary": text}.
type Summary struct {
	Summary string `json:"summary"`
}

type runResultJSON struct {
	Plan    Plan         `json:"plan"`
	Results []StepResult `json:"results"`
	Summary Summary      `json:"summary"`
}

// MarshalJSON encodes the caller-facing shape
// {"plan": [...], "results": [{tool: result}, ...], "summary": {"summary": text}}.
func (r RunResult) MarshalJSON() ([]byte, error) {
	out := runResultJSON{Plan: r.Plan, Results: r.Results, Summary: Summary{Summary: r.Summary}}
	if out.Plan == nil {
		out.Plan = Plan{}
	}
	if out.Results == nil {
		out.Results = []StepResult{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the caller-facing shape.
func (r *RunResult) UnmarshalJSON(data []byte) error {
	var in runResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = RunResult{Plan: in.Plan, Results: in.Results, Summary: in.Summary.Summary}
	return nil
}

// ErrorResponse is returned to callers when no answer could be produced.
type ErrorResponse struct {
	Error string `json:"error"`
}
