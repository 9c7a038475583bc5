package state

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNilTaskState = errors.New("task state is nil")
	ErrInvalidTask  = errors.New("task id is empty")
	ErrEmptyStep    = errors.New("step name is empty")
)

// TaskState is the single mutable result accumulator for one user-visible
// task. Exactly one orchestration run owns it at a time; everything
// downstream reads it, never writes. It lives for the task and is discarded
// at task end unless explicitly handed to the persistence collaborator.
type TaskState struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`

	CurrentStep string                    `json:"current_step,omitempty"`
	Results     map[string]map[string]any `json:"results,omitempty"`
	Retries     map[string]int            `json:"retries,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTaskState starts a fresh accumulator for one task.
func NewTaskState(description string, now time.Time) *TaskState {
	return &TaskState{
		TaskID:      uuid.NewString(),
		Description: description,
		Results:     make(map[string]map[string]any, 4),
		Retries:     make(map[string]int, 4),
		StartedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}

func (s *TaskState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// BeginStep marks the step currently being orchestrated.
func (s *TaskState) BeginStep(step string, now time.Time) error {
	if s == nil {
		return ErrNilTaskState
	}
	if step == "" {
		return ErrEmptyStep
	}
	s.CurrentStep = step
	s.Touch(now)
	return nil
}

// AcceptResult stores the last accepted payload for a step, replacing any
// earlier attempt's payload.
func (s *TaskState) AcceptResult(step string, payload map[string]any, now time.Time) error {
	if s == nil {
		return ErrNilTaskState
	}
	if step == "" {
		return ErrEmptyStep
	}
	if s.Results == nil {
		s.Results = make(map[string]map[string]any, 4)
	}
	s.Results[step] = payload
	s.Touch(now)
	return nil
}

// Result returns the accepted payload for a step, if any.
func (s *TaskState) Result(step string) (map[string]any, bool) {
	if s == nil || s.Results == nil {
		return nil, false
	}
	payload, ok := s.Results[step]
	return payload, ok
}

// RecordRetry bumps the per-step retry counter and returns the new count.
func (s *TaskState) RecordRetry(step string, now time.Time) int {
	if s == nil || step == "" {
		return 0
	}
	if s.Retries == nil {
		s.Retries = make(map[string]int, 4)
	}
	s.Retries[step]++
	s.Touch(now)
	return s.Retries[step]
}
