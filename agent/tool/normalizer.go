package tool

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	statex "github.com/voyago/voyago/agent/state"
)

// RewriteRule pairs a discovery tool with its completion counterpart. When
// the task text shows completion intent but the chosen tool only discovers,
// the call is redirected and the identifier from an earlier accepted step is
// injected.
type RewriteRule struct {
	CompletionTool string
	IdentifierArg  string
	SourceStep     string
	SourceListKey  string
	SourceIDKey    string
}

// Normalizer shapes raw arguments before dispatch: weak-type coercion
// against the descriptor schema, default injection, then intent-based
// rewriting. Best-effort throughout; it never fails a call itself, it only
// improves its odds of passing dispatcher validation.
type Normalizer struct {
	registry *Registry
	rules    map[string]RewriteRule

	completionVerbs []string
	discoveryVerbs  []string
}

func NewNormalizer(registry *Registry, rules map[string]RewriteRule) *Normalizer {
	if rules == nil {
		rules = map[string]RewriteRule{}
	}
	return &Normalizer{
		registry:        registry,
		rules:           rules,
		completionVerbs: []string{"book", "confirm", "reserve", "finalize", "purchase", "pay for"},
		discoveryVerbs:  []string{"find", "show", "search", "list", "compare", "look for"},
	}
}

// Normalize returns the (possibly redirected) tool name and shaped
// arguments. The original arguments map is never mutated.
func (n *Normalizer) Normalize(toolName string, rawArgs map[string]any, taskText string, task *statex.TaskState) (string, map[string]any) {
	desc, err := n.registry.Resolve(toolName)
	if err != nil {
		// Unknown tool: nothing to coerce against; the dispatcher will
		// produce the NOT_FOUND fault.
		return toolName, rawArgs
	}

	args := make(map[string]any, len(rawArgs)+2)
	for k, v := range rawArgs {
		args[k] = v
	}

	coerceArguments(desc.Params, args)
	injectDefaults(desc.Params, args)

	if rewritten, newArgs, ok := n.rewriteForIntent(toolName, args, taskText, task); ok {
		return rewritten, newArgs
	}
	return toolName, args
}

func coerceArguments(params map[string]*ParamSpec, args map[string]any) {
	for name, spec := range params {
		val, ok := args[name]
		if !ok {
			continue
		}
		if coerced, ok := coerceValue(val, spec); ok {
			args[name] = coerced
		}
	}
}

// coerceValue turns loosely-typed values from the upstream decision-making
// caller into the declared type. Values that already match, or cannot be
// coerced, come back unchanged.
func coerceValue(val any, spec *ParamSpec) (any, bool) {
	switch spec.Type {
	case TypeInteger:
		switch v := val.(type) {
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return int(i), true
			}
		case float64:
			if v == float64(int64(v)) {
				return int(v), true
			}
		}
	case TypeNumber:
		if v, ok := val.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	case TypeBoolean:
		if v, ok := val.(string); ok {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "yes":
				return true, true
			case "false", "no":
				return false, true
			}
		}
	case TypeString:
		switch v := val.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case int:
			return strconv.Itoa(v), true
		case bool:
			return strconv.FormatBool(v), true
		}
	case TypeObject:
		// Coerce into a copy: the nested map still belongs to the caller.
		if nested, ok := val.(map[string]any); ok && len(spec.Fields) > 0 {
			copied := make(map[string]any, len(nested))
			for k, v := range nested {
				copied[k] = v
			}
			coerceArguments(spec.Fields, copied)
			return copied, true
		}
	}
	return val, false
}

func injectDefaults(params map[string]*ParamSpec, args map[string]any) {
	for name, spec := range params {
		if _, present := args[name]; present {
			continue
		}
		if spec.Default != nil {
			args[name] = spec.Default
		}
	}
}

// rewriteForIntent redirects a discovery call to its completion counterpart
// when the user clearly wants to finalize, not search. On any failure to
// extract an identifier it reports ok=false and the call goes through
// unchanged; the dispatcher's own validation is the backstop.
func (n *Normalizer) rewriteForIntent(toolName string, args map[string]any, taskText string, task *statex.TaskState) (string, map[string]any, bool) {
	rule, ok := n.rules[toolName]
	if !ok {
		return "", nil, false
	}
	if !n.hasCompletionIntent(taskText) {
		return "", nil, false
	}

	id, ok := extractIdentifier(task, rule)
	if !ok {
		log.Debug().
			Str("tool", toolName).
			Str("source_step", rule.SourceStep).
			Msg("completion intent detected but no identifier could be extracted")
		return "", nil, false
	}

	completion, err := n.registry.Resolve(rule.CompletionTool)
	if err != nil {
		return "", nil, false
	}

	// Only arguments the completion tool declares survive the redirect.
	newArgs := make(map[string]any, len(args)+1)
	for k, v := range args {
		if _, ok := completion.Params[k]; ok {
			newArgs[k] = v
		}
	}
	newArgs[rule.IdentifierArg] = id

	log.Info().
		Str("from", toolName).
		Str("to", rule.CompletionTool).
		Str(rule.IdentifierArg, id).
		Msg("rewrote discovery call to completion call")
	return rule.CompletionTool, newArgs, true
}

// hasCompletionIntent detects completion verbs that are not outweighed by
// discovery verbs in the same task text.
func (n *Normalizer) hasCompletionIntent(taskText string) bool {
	text := strings.ToLower(taskText)
	completion := false
	for _, verb := range n.completionVerbs {
		if strings.Contains(text, verb) {
			completion = true
			break
		}
	}
	if !completion {
		return false
	}
	for _, verb := range n.discoveryVerbs {
		if strings.Contains(text, verb) {
			return false
		}
	}
	return true
}

func extractIdentifier(task *statex.TaskState, rule RewriteRule) (string, bool) {
	if task == nil {
		return "", false
	}
	payload, ok := task.Result(rule.SourceStep)
	if !ok {
		return "", false
	}

	items, ok := payload[rule.SourceListKey].([]any)
	if !ok || len(items) == 0 {
		return "", false
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := first[rule.SourceIDKey].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}
