package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/voyago/voyago/agent/contract"
)

// llmJudge is the production judgment collaborator: a second, cheap model
// call that classifies the last result as pass or need_retry.
type llmJudge struct {
	runner compose.Runnable[map[string]any, judgeLLMOutput]
}

type judgeLLMOutput struct {
	Status          string `json:"status"`
	FeedbackMessage string `json:"feedback_message,omitempty"`
	SuggestedAction string `json:"suggested_action,omitempty"`
}

var _ contractx.Judge = (*llmJudge)(nil)

// NewLLMJudge compiles the judgment graph once at startup.
func NewLLMJudge(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (contractx.Judge, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: judge prompt", contractx.ErrPromptMissing)
	}
	runner, err := compileJudgeGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile judge graph: %v", contractx.ErrModelInvoke, err)
	}
	return &llmJudge{runner: runner}, nil
}

func (j *llmJudge) Judge(ctx context.Context, req contractx.JudgeRequest) (contractx.JudgeResponse, error) {
	payload := map[string]any{
		"task_text":      req.TaskText,
		"step":           req.Step,
		"result_summary": req.ResultSummary,
		"attempt":        req.Attempt,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.JudgeResponse{}, fmt.Errorf("%w: marshal judge payload: %v", contractx.ErrValidation, err)
	}

	out, err := j.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.JudgeResponse{}, fmt.Errorf("%w: judge invoke: %v", contractx.ErrModelInvoke, err)
	}

	status := contractx.JudgeStatus(strings.TrimSpace(strings.ToLower(out.Status)))
	switch status {
	case contractx.JudgePass, contractx.JudgeNeedRetry:
	default:
		return contractx.JudgeResponse{}, fmt.Errorf("%w: unsupported judge status=%q", contractx.ErrSchemaViolation, out.Status)
	}

	if status == contractx.JudgeNeedRetry && strings.TrimSpace(out.FeedbackMessage) == "" {
		return contractx.JudgeResponse{}, fmt.Errorf("%w: need_retry requires feedback_message", contractx.ErrSchemaViolation)
	}

	return contractx.JudgeResponse{
		Status:          status,
		FeedbackMessage: strings.TrimSpace(out.FeedbackMessage),
		SuggestedAction: strings.TrimSpace(out.SuggestedAction),
	}, nil
}
