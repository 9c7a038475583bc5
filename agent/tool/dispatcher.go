package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/voyago/voyago/agent/contract"
)

const (
	// Log payloads are truncated so one oversized provider response cannot
	// blow up the log volume.
	maxLoggedRequestBytes  = 2000
	maxLoggedResponseBytes = 5000

	defaultInvokeTimeout = 10 * time.Second
	minInvokeTimeout     = 4 * time.Second
	maxInvokeTimeout     = 15 * time.Second
)

// Dispatcher executes registered tools and normalizes every fault into a
// structured envelope. It is the only component that touches handlers.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	perTool  map[string]time.Duration
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDefaultTimeout sets the fallback per-invocation timeout, clamped to
// the bounded provider range.
func WithDefaultTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.timeout = clampTimeout(d)
	}
}

// WithToolTimeout overrides the timeout for one provider tool, clamped to
// the bounded provider range.
func WithToolTimeout(tool string, d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		tool = strings.TrimSpace(tool)
		if tool == "" {
			return
		}
		disp.perTool[tool] = clampTimeout(d)
	}
}

func clampTimeout(d time.Duration) time.Duration {
	if d < minInvokeTimeout {
		return minInvokeTimeout
	}
	if d > maxInvokeTimeout {
		return maxInvokeTimeout
	}
	return d
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	d := &Dispatcher{
		registry: registry,
		timeout:  defaultInvokeTimeout,
		perTool:  make(map[string]time.Duration, 4),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

var _ contractx.Invoker = (*Dispatcher)(nil)

// Invoke resolves the tool, runs its handler under a bounded timeout, and
// maps every failure mode into exactly one InvocationResult. It never
// panics and never returns a Go error; the envelope is the whole contract.
func (d *Dispatcher) Invoke(ctx context.Context, tool string, args map[string]any) contractx.InvocationResult {
	log.Info().
		Str("tool", tool).
		Str("args", truncatePayload(args, maxLoggedRequestBytes)).
		Msg("tool invoke")

	result := d.invoke(ctx, tool, args)

	evt := log.Info()
	if !result.OK() {
		evt = log.Warn().Str("fault_code", string(result.Fault.Code))
	}
	evt.Str("tool", tool).
		Bool("ok", result.OK()).
		Str("result", truncatePayload(result.Payload, maxLoggedResponseBytes)).
		Msg("tool invoke done")

	return result
}

func (d *Dispatcher) invoke(ctx context.Context, tool string, args map[string]any) contractx.InvocationResult {
	desc, err := d.registry.Resolve(tool)
	if err != nil {
		fault := contractx.NewFault(contractx.FaultNotFound, fmt.Sprintf("tool %q is not registered", tool)).
			WithSuggestion("The requested operation is not available; pick one of the listed tools.")
		return contractx.Failure(tool, fault)
	}

	if fault := validateArguments(desc, args); fault != nil {
		return contractx.Failure(tool, fault)
	}

	timeout := d.timeout
	if t, ok := d.perTool[desc.Name]; ok {
		timeout = t
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := runHandler(callCtx, desc, args)
	if err != nil {
		return contractx.Failure(tool, executionFault(callCtx, err))
	}

	// Providers declare their own failures as error=true payloads. Those
	// pass through unchanged rather than being re-wrapped.
	if fault := contractx.FaultFromPayload(payload); fault != nil {
		return contractx.Failure(tool, fault)
	}

	return contractx.Success(tool, payload)
}

// InvokeAll runs independent calls from one orchestration turn concurrently
// and joins them all before returning. Results keep request order.
func (d *Dispatcher) InvokeAll(ctx context.Context, reqs []contractx.InvocationRequest) []contractx.InvocationResult {
	results := make([]contractx.InvocationResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = d.Invoke(gctx, req.Tool, req.Args)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runHandler isolates the handler call so a panic inside a provider shows
// up as a fault, not a crashed orchestration loop.
func runHandler(ctx context.Context, desc *Descriptor, args map[string]any) (payload map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return desc.handler(ctx, args)
}

func executionFault(ctx context.Context, err error) *contractx.Fault {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return contractx.NewFault(contractx.FaultTimeout, "provider call timed out").
			WithSuggestion("The travel data provider is slow right now; please try again.").
			WithDetail("cause", err.Error())
	}
	return contractx.NewFault(contractx.FaultExecutionError, "tool execution failed").
		WithSuggestion("Something went wrong while fetching travel data; please try again.").
		WithDetail("cause", err.Error())
}

// validateArguments checks arity and types against the descriptor. It does
// not coerce; loose values are the normalizer's job, upstream of here.
func validateArguments(desc *Descriptor, args map[string]any) *contractx.Fault {
	missing := make([]string, 0, 2)
	for name, spec := range desc.Params {
		val, present := args[name]
		if !present {
			if spec.Required() {
				missing = append(missing, name)
			}
			continue
		}
		if !matchesType(val, spec.Type) {
			return badArgumentsFault(desc.Name, fmt.Sprintf("argument %q must be of type %s", name, spec.Type))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return badArgumentsFault(desc.Name, fmt.Sprintf("missing required arguments: %s", strings.Join(missing, ", ")))
	}
	for name := range args {
		if _, ok := desc.Params[name]; !ok {
			return badArgumentsFault(desc.Name, fmt.Sprintf("unknown argument %q", name))
		}
	}
	return nil
}

func badArgumentsFault(tool, message string) *contractx.Fault {
	return contractx.NewFault(contractx.FaultBadArguments, message).
		WithSuggestion("The request was malformed; rephrase it with the details the tool expects.").
		WithDetail("tool", tool)
}

func matchesType(val any, t ParamType) bool {
	if val == nil {
		return false
	}
	switch t {
	case TypeString:
		_, ok := val.(string)
		return ok
	case TypeBoolean:
		_, ok := val.(bool)
		return ok
	case TypeInteger:
		switch v := val.(type) {
		case int, int32, int64:
			return true
		case float64:
			return v == float64(int64(v))
		case float32:
			return v == float32(int64(v))
		default:
			return false
		}
	case TypeNumber:
		switch val.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case TypeObject:
		_, ok := val.(map[string]any)
		return ok
	case TypeArray:
		switch val.(type) {
		case []any, []string, []map[string]any:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

func truncatePayload(payload map[string]any, limit int) string {
	if payload == nil {
		return ""
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("unmarshalable payload: %v", err)
	}
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "...(truncated)"
}
