// Package tools provides the flight lookup tools: the fixed catalog the
// planner is prompted with and the executor that runs one step against
// the document store.
//
// Information Hiding:
// - Argument sanitation and normalization hidden in the executor
// - Query construction and projection profiles hidden per tool
// - Store failures converted to tagged results, never returned as errors
package tools

import (
	"encoding/json"
	"fmt"
)

// ToolParameter defines a parameter schema for a tool.
type ToolParameter struct {
	Name        string `json:"name"`
	ParamType   string `json:"param_type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Status codes carried by failed results.
const (
	CodeBadRequest  = 400
	CodeNotFound    = 404
	CodeStoreFailed = 500
	CodeBadGateway  = 502
	CodeUnavailable = 503
)

// Result is the outcome of one tool invocation: either OK with Data, or a
// failure with Message and Code. It encodes as
// {"ok":true,"data":...} or {"ok":false,"error":{"message":...,"code":...}}.
type Result struct {
	OK      bool
	Data    any
	Message string
	Code    int
}

// Success creates a successful tool result.
func Success(data any) Result {
	return Result{OK: true, Data: data}
}

// Failure creates a failed tool result.
func Failure(code int, message string) Result {
	return Result{Code: code, Message: message}
}

// Failuref creates a failed tool result with a formatted message.
func Failuref(code int, format string, args ...any) Result {
	return Result{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error returns the failure message, or "" for a successful result.
func (r Result) Error() string {
	if r.OK {
		return ""
	}
	return r.Message
}

type resultError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type resultEnvelope struct {
	OK    bool         `json:"ok"`
	Data  any          `json:"data,omitempty"`
	Error *resultError `json:"error,omitempty"`
}

// MarshalJSON implements the result envelope.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.OK {
		return json.Marshal(struct {
			OK   bool `json:"ok"`
			Data any  `json:"data"`
		}{OK: true, Data: r.Data})
	}
	return json.Marshal(resultEnvelope{
		OK:    false,
		Error: &resultError{Message: r.Message, Code: r.Code},
	})
}

// UnmarshalJSON decodes a result envelope.
func (r *Result) UnmarshalJSON(data []byte) error {
	var env resultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.OK {
		*r = Success(env.Data)
		return nil
	}
	if env.Error == nil {
		return fmt.Errorf("result envelope has neither data nor error")
	}
	*r = Failure(env.Error.Code, env.Error.Message)
	return nil
}
