package state

import (
	"errors"
	"testing"
	"time"
)

func TestNewTaskStateAssignsID(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	st := NewTaskState("round trip BKK to NRT", now)

	if st.TaskID == "" {
		t.Fatal("NewTaskState() must assign a task id")
	}
	other := NewTaskState("round trip BKK to NRT", now)
	if st.TaskID == other.TaskID {
		t.Fatal("task ids must be unique per task")
	}
	if !st.StartedAt.Equal(now) || !st.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v/%v, want %v", st.StartedAt, st.UpdatedAt, now)
	}
}

func TestAcceptResultReplacesEarlierAttempt(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	st := NewTaskState("book a hotel", now)

	first := map[string]any{"offers": []any{"HT-1"}}
	second := map[string]any{"offers": []any{"HT-2", "HT-3"}}

	if err := st.AcceptResult("hotel_search", first, now); err != nil {
		t.Fatalf("AcceptResult() error = %v", err)
	}
	later := now.Add(time.Minute)
	if err := st.AcceptResult("hotel_search", second, later); err != nil {
		t.Fatalf("AcceptResult() error = %v", err)
	}

	got, ok := st.Result("hotel_search")
	if !ok {
		t.Fatal("Result() did not find the step")
	}
	if len(got["offers"].([]any)) != 2 {
		t.Fatal("AcceptResult() must replace the earlier payload, not merge")
	}
	if !st.UpdatedAt.Equal(later) {
		t.Fatalf("UpdatedAt = %v, want %v", st.UpdatedAt, later)
	}
}

func TestAcceptResultRejectsEmptyStep(t *testing.T) {
	t.Parallel()

	st := NewTaskState("task", time.Now().UTC())
	if err := st.AcceptResult("", map[string]any{}, time.Now().UTC()); !errors.Is(err, ErrEmptyStep) {
		t.Fatalf("AcceptResult() error = %v, want ErrEmptyStep", err)
	}
}

func TestResultMissingStep(t *testing.T) {
	t.Parallel()

	st := NewTaskState("task", time.Now().UTC())
	if _, ok := st.Result("never_ran"); ok {
		t.Fatal("Result() must report absence for a step that never ran")
	}
}

func TestRecordRetryCountsPerStep(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	st := NewTaskState("task", now)

	if n := st.RecordRetry("flight_search", now); n != 1 {
		t.Fatalf("RecordRetry() = %d, want 1", n)
	}
	if n := st.RecordRetry("flight_search", now); n != 2 {
		t.Fatalf("RecordRetry() = %d, want 2", n)
	}
	if n := st.RecordRetry("hotel_search", now); n != 1 {
		t.Fatalf("RecordRetry() must count per step, got %d", n)
	}
}

func TestBeginStepTracksCurrentStep(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	st := NewTaskState("task", now)

	if err := st.BeginStep("flight_search", now); err != nil {
		t.Fatalf("BeginStep() error = %v", err)
	}
	if st.CurrentStep != "flight_search" {
		t.Fatalf("CurrentStep = %q", st.CurrentStep)
	}
	if err := st.BeginStep("", now); !errors.Is(err, ErrEmptyStep) {
		t.Fatalf("BeginStep() error = %v, want ErrEmptyStep", err)
	}
}
