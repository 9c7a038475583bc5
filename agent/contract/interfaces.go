package contract

import (
	"context"
	"time"
)

// Invoker is the dispatch contract the orchestration loop depends on. The
// implementation may run the underlying tool synchronously or hand it off;
// the caller never knows which.
type Invoker interface {
	Invoke(ctx context.Context, tool string, args map[string]any) InvocationResult
}

// Judge classifies one orchestration step's result as pass or need_retry.
// The core treats it as a black box; the production implementation is a
// second model call.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (JudgeResponse, error)
}

// TaskDecision is one accepted step result handed to the plan persistence
// collaborator when a task finishes.
type TaskDecision struct {
	TaskID    string         `json:"task_id"`
	Step      string         `json:"step"`
	Payload   map[string]any `json:"payload"`
	DecidedAt time.Time      `json:"decided_at"`
}

// PlanStore persists accepted user decisions beyond the current task. It is
// an explicit hand-off: nothing writes to it until the orchestration loop
// decides the task is done.
type PlanStore interface {
	SaveDecision(ctx context.Context, decision TaskDecision) error
}
