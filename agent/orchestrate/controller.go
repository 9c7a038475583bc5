package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/voyago/voyago/agent/contract"
	statex "github.com/voyago/voyago/agent/state"
)

// StepState names the controller's states. Accepted and ForceAccepted are
// both terminal; the distinction is kept for observability only.
type StepState string

const (
	StateInvoking      StepState = "invoking"
	StateJudging       StepState = "judging"
	StateRetrying      StepState = "retrying"
	StateAccepted      StepState = "accepted"
	StateForceAccepted StepState = "force_accepted"
)

const defaultMaxAttempts = 2

const maxSummaryChars = 500

// Reviser lets the decision-making collaborator reshape the next attempt's
// request from the judgment feedback. The default keeps the request as-is.
type Reviser interface {
	Revise(ctx context.Context, req contractx.InvocationRequest, feedback string) contractx.InvocationRequest
}

// StepOutcome is what one finished orchestration step reports.
type StepOutcome struct {
	Step     string
	State    StepState
	Result   contractx.InvocationResult
	Attempts int
	Feedback string
}

// retryContext is per step, owned by the controller run executing that
// step; it is never shared across steps or tasks.
type retryContext struct {
	attemptCount int
	maxAttempts  int
	lastFeedback string
}

// Controller runs one bounded invoke→judge→accept-or-retry loop per
// orchestration step. Attempts are strictly sequential: each retry's
// feedback is derived from the previous attempt's outcome.
type Controller struct {
	invoker     contractx.Invoker
	judge       contractx.Judge
	reviser     Reviser
	maxAttempts int
	now         func() time.Time
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

func WithMaxAttempts(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithReviser(r Reviser) ControllerOption {
	return func(c *Controller) {
		c.reviser = r
	}
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func NewController(invoker contractx.Invoker, judge contractx.Judge, opts ...ControllerOption) (*Controller, error) {
	if invoker == nil {
		return nil, errors.New("invoker is required")
	}
	if judge == nil {
		return nil, errors.New("judge is required")
	}
	c := &Controller{
		invoker:     invoker,
		judge:       judge,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// RunStep executes one orchestration step to a terminal state and writes
// the accepted payload into the task's shared state under the step key.
func (c *Controller) RunStep(ctx context.Context, task *statex.TaskState, step string, req contractx.InvocationRequest) (StepOutcome, error) {
	if task == nil {
		return StepOutcome{}, statex.ErrNilTaskState
	}
	step = strings.TrimSpace(step)
	if err := task.BeginStep(step, c.now()); err != nil {
		return StepOutcome{}, err
	}

	rc := &retryContext{maxAttempts: c.maxAttempts}
	attempt := req

	for {
		rc.attemptCount++
		log.Debug().
			Str("step", step).
			Str("state", string(StateInvoking)).
			Int("attempt", rc.attemptCount).
			Msg("step attempt")

		result := c.invoker.Invoke(ctx, attempt.Tool, attempt.Args)

		verdict := c.judgeResult(ctx, task, step, rc, result)
		if verdict.Status == contractx.JudgePass {
			return c.accept(task, step, rc, result, StateAccepted), nil
		}

		rc.lastFeedback = verdict.FeedbackMessage
		if rc.attemptCount >= rc.maxAttempts {
			// Budget exhausted: force-accept the last result so the task
			// keeps moving. Liveness wins over another speculative retry.
			return c.accept(task, step, rc, result, StateForceAccepted), nil
		}

		task.RecordRetry(step, c.now())
		log.Info().
			Str("step", step).
			Str("state", string(StateRetrying)).
			Int("attempt", rc.attemptCount).
			Str("feedback", rc.lastFeedback).
			Msg("step retrying")

		if c.reviser != nil {
			attempt = c.reviser.Revise(ctx, attempt, rc.lastFeedback)
		}
	}
}

// judgeResult applies the deterministic checks first and only then consults
// the semantic judge. A non-retriable fault is terminal either way: a
// caller fault must be fixed upstream, absent data will not appear on
// retry, and retrying an internal bug almost never helps.
func (c *Controller) judgeResult(ctx context.Context, task *statex.TaskState, step string, rc *retryContext, result contractx.InvocationResult) contractx.JudgeResponse {
	if result.Fault != nil {
		if !result.Fault.Retriable {
			return contractx.JudgeResponse{Status: contractx.JudgePass}
		}
		return contractx.JudgeResponse{
			Status:          contractx.JudgeNeedRetry,
			FeedbackMessage: result.Fault.Error(),
		}
	}

	verdict, err := c.judge.Judge(ctx, contractx.JudgeRequest{
		TaskText:      task.Description,
		Step:          step,
		ResultSummary: summarizeResult(result),
		Attempt:       rc.attemptCount,
	})
	if err != nil {
		// A broken judge must not stall the task; the result stands.
		log.Warn().Err(err).Str("step", step).Msg("judge call failed, accepting result")
		return contractx.JudgeResponse{Status: contractx.JudgePass}
	}
	return verdict
}

func (c *Controller) accept(task *statex.TaskState, step string, rc *retryContext, result contractx.InvocationResult, terminal StepState) StepOutcome {
	if result.OK() {
		if err := task.AcceptResult(step, result.Payload, c.now()); err != nil {
			log.Error().Err(err).Str("step", step).Msg("store accepted result")
		}
	}
	log.Info().
		Str("step", step).
		Str("state", string(terminal)).
		Int("attempts", rc.attemptCount).
		Bool("ok", result.OK()).
		Msg("step finished")

	return StepOutcome{
		Step:     step,
		State:    terminal,
		Result:   result,
		Attempts: rc.attemptCount,
		Feedback: rc.lastFeedback,
	}
}

// summarizeResult compacts a success payload for the judgment call so its
// input stays bounded no matter what the provider returned.
func summarizeResult(result contractx.InvocationResult) string {
	if result.Fault != nil {
		return result.Fault.Error()
	}
	if len(result.Payload) == 0 {
		return "empty payload"
	}

	keys := make([]string, 0, len(result.Payload))
	for k := range result.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "tool=%s keys=[%s]", result.Tool, strings.Join(keys, ","))
	for _, k := range keys {
		switch v := result.Payload[k].(type) {
		case []any:
			fmt.Fprintf(&b, " %s:%d items", k, len(v))
		case string, bool, float64, int:
			fmt.Fprintf(&b, " %s=%v", k, v)
		default:
			if raw, err := json.Marshal(v); err == nil && len(raw) <= 80 {
				fmt.Fprintf(&b, " %s=%s", k, raw)
			}
		}
	}

	summary := b.String()
	if len(summary) > maxSummaryChars {
		summary = summary[:maxSummaryChars] + "..."
	}
	return summary
}
