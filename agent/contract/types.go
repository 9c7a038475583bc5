package contract

import (
	"fmt"
	"strings"
)

// FaultCode is the machine-readable classification attached to every failed
// invocation. The set is fixed; providers and the dispatcher never invent codes.
type FaultCode string

const (
	FaultValidation      FaultCode = "VALIDATION_ERROR"
	FaultBadRequest      FaultCode = "BAD_REQUEST"
	FaultNotFound        FaultCode = "NOT_FOUND"
	FaultTimeout         FaultCode = "TIMEOUT"
	FaultNetwork         FaultCode = "NETWORK_ERROR"
	FaultHTTP            FaultCode = "HTTP_ERROR"
	FaultAPI             FaultCode = "API_ERROR"
	FaultUnexpected      FaultCode = "UNEXPECTED_ERROR"
	FaultDataUnavailable FaultCode = "DATA_UNAVAILABLE"

	// Dispatcher-boundary codes: the caller shaped the call wrong, or the
	// implementation blew up in an undeclared way.
	FaultBadArguments   FaultCode = "BAD_ARGUMENTS"
	FaultExecutionError FaultCode = "EXECUTION_ERROR"
)

// Retriable reports whether retrying an invocation that failed with this code
// can plausibly change the outcome. Caller faults and legitimate-absence
// faults are not retriable; transient transport faults are.
func (c FaultCode) Retriable() bool {
	switch c {
	case FaultTimeout, FaultNetwork, FaultHTTP, FaultExecutionError:
		return true
	default:
		return false
	}
}

// CallerFault reports whether the fault is the caller's to fix (bad tool
// name, schema-invalid arguments). These are surfaced immediately, never
// retried automatically.
func (c FaultCode) CallerFault() bool {
	switch c {
	case FaultValidation, FaultBadRequest, FaultNotFound, FaultBadArguments:
		return true
	default:
		return false
	}
}

// Fault is the structured error envelope every failed invocation carries.
type Fault struct {
	Code       FaultCode      `json:"code"`
	Message    string         `json:"message"`
	Retriable  bool           `json:"retriable"`
	Suggestion string         `json:"suggestion,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

func (f *Fault) Error() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// NewFault builds a fault with retriability derived from the code.
func NewFault(code FaultCode, message string) *Fault {
	return &Fault{
		Code:      code,
		Message:   message,
		Retriable: code.Retriable(),
	}
}

// WithSuggestion attaches end-user-facing remediation text.
func (f *Fault) WithSuggestion(s string) *Fault {
	f.Suggestion = strings.TrimSpace(s)
	return f
}

// WithDetail records one structured detail, allocating the map lazily.
func (f *Fault) WithDetail(key string, val any) *Fault {
	if f.Details == nil {
		f.Details = make(map[string]any, 4)
	}
	f.Details[key] = val
	return f
}

// InvocationRequest is one tool call as the orchestrating layer expresses it.
// Transient: one per call, never persisted.
type InvocationRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// InvocationResult is the tagged union every dispatcher call returns: either
// Payload is set and Fault is nil, or Fault is set. The Fault tag is
// authoritative; a success payload that happens to contain an "error" field
// is still a success.
type InvocationResult struct {
	Tool    string         `json:"tool"`
	Payload map[string]any `json:"payload,omitempty"`
	Fault   *Fault         `json:"fault,omitempty"`
}

// OK reports whether the invocation succeeded.
func (r InvocationResult) OK() bool {
	return r.Fault == nil
}

func Success(tool string, payload map[string]any) InvocationResult {
	return InvocationResult{Tool: tool, Payload: payload}
}

func Failure(tool string, fault *Fault) InvocationResult {
	if fault == nil {
		fault = NewFault(FaultUnexpected, "failure without fault")
	}
	return InvocationResult{Tool: tool, Fault: fault}
}

// FaultFromPayload recognizes the declared-failure convention providers use:
// a result map carrying error=true plus optional code/message/suggestion
// fields. Returns nil when the payload is not a declared failure.
func FaultFromPayload(payload map[string]any) *Fault {
	if payload == nil {
		return nil
	}
	flagged, ok := payload["error"].(bool)
	if !ok || !flagged {
		return nil
	}

	code := FaultAPI
	if raw, ok := payload["code"].(string); ok && strings.TrimSpace(raw) != "" {
		code = FaultCode(strings.TrimSpace(raw))
	}
	message, _ := payload["message"].(string)
	if strings.TrimSpace(message) == "" {
		message = "provider reported a failure"
	}

	fault := NewFault(code, message)
	if s, ok := payload["suggestion"].(string); ok {
		fault.Suggestion = strings.TrimSpace(s)
	}
	if d, ok := payload["details"].(map[string]any); ok {
		fault.Details = d
	}
	return fault
}

// JudgeStatus is the verdict the judgment collaborator returns.
type JudgeStatus string

const (
	JudgePass      JudgeStatus = "pass"
	JudgeNeedRetry JudgeStatus = "need_retry"
)

// JudgeRequest carries a compact summary of the last result, never the full
// raw payload, so the judgment input stays bounded.
type JudgeRequest struct {
	TaskText      string `json:"task_text"`
	Step          string `json:"step"`
	ResultSummary string `json:"result_summary"`
	Attempt       int    `json:"attempt"`
}

type JudgeResponse struct {
	Status          JudgeStatus `json:"status"`
	FeedbackMessage string      `json:"feedback_message,omitempty"`
	SuggestedAction string      `json:"suggested_action,omitempty"`
}
