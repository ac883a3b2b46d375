package orchestration

import "fmt"

// Error codes for pipeline failures.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeNoValidPlan = "NO_VALID_PLAN"
	ErrCodeCancelled   = "EXECUTION_CANCELLED"
)

// MsgNoValidPlan is reported when planning yields no steps.
const MsgNoValidPlan = "LLM did not produce a valid tool plan."

// PipelineError is returned by RunQuery when a question cannot be answered.
type PipelineError struct {
	Stage   Stage  // Stage the run was in when it stopped
	Code    string // Machine-readable code (e.g., ErrCodeNoValidPlan)
	Message string // Human-readable message, safe to show callers
	Cause   error  // Underlying error, if any
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func newNoValidPlanError() *PipelineError {
	return &PipelineError{Stage: StagePlanning, Code: ErrCodeNoValidPlan, Message: MsgNoValidPlan}
}

func newValidationError(message string) *PipelineError {
	return &PipelineError{Stage: StagePlanning, Code: ErrCodeValidation, Message: message}
}

func newCancelledError(stage Stage, cause error) *PipelineError {
	return &PipelineError{Stage: stage, Code: ErrCodeCancelled, Message: "execution cancelled", Cause: cause}
}
