package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	contractx "github.com/voyago/voyago/agent/contract"
)

type completeFunc func(ctx context.Context, input string) (string, error)

// llmReviser asks the decision model to reshape a failed attempt's arguments
// from the judgment feedback. Best-effort throughout: any failure on this
// path keeps the request as-is, so a broken reviser can only cost retry
// quality, never the step.
type llmReviser struct {
	complete completeFunc
}

var _ Reviser = (*llmReviser)(nil)

// NewLLMReviser builds the production reviser on the raw chat-completions
// client. Unlike the judge this is a single unstructured call, so it uses
// the SDK directly instead of a compiled graph.
func NewLLMReviser(client *openaisdk.Client, model, systemPrompt string) (Reviser, error) {
	if client == nil {
		return nil, errors.New("chat completions client is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("reviser model is required")
	}
	systemPrompt = strings.TrimSpace(systemPrompt)
	if systemPrompt == "" {
		return nil, fmt.Errorf("%w: reviser prompt", contractx.ErrPromptMissing)
	}

	return &llmReviser{
		complete: func(ctx context.Context, input string) (string, error) {
			resp, err := client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
				Model: openaisdk.ChatModel(model),
				Messages: []openaisdk.ChatCompletionMessageParamUnion{
					openaisdk.SystemMessage(systemPrompt),
					openaisdk.UserMessage(input),
				},
			})
			if err != nil {
				return "", err
			}
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("%w: empty completion", contractx.ErrModelInvoke)
			}
			return resp.Choices[0].Message.Content, nil
		},
	}, nil
}

func (r *llmReviser) Revise(ctx context.Context, req contractx.InvocationRequest, feedback string) contractx.InvocationRequest {
	input, err := json.Marshal(map[string]any{
		"tool":     req.Tool,
		"args":     req.Args,
		"feedback": feedback,
	})
	if err != nil {
		return req
	}

	content, err := r.complete(ctx, string(input))
	if err != nil {
		log.Warn().Err(err).Str("tool", req.Tool).Msg("reviser call failed, keeping request")
		return req
	}

	args, err := revisedArguments(content)
	if err != nil {
		log.Warn().Err(err).Str("tool", req.Tool).Msg("unusable reviser output, keeping request")
		return req
	}
	return contractx.InvocationRequest{Tool: req.Tool, Args: args}
}

// revisedArguments parses the model's reply, tolerating a fenced code block.
func revisedArguments(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out struct {
		Args map[string]any `json:"args"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return nil, fmt.Errorf("%w: parse reviser output: %v", contractx.ErrSchemaViolation, err)
	}
	if len(out.Args) == 0 {
		return nil, fmt.Errorf("%w: reviser output carries no arguments", contractx.ErrSchemaViolation)
	}
	return out.Args, nil
}
