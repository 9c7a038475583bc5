package tool

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	contractx "github.com/voyago/voyago/agent/contract"
)

func newTestDispatcher(t *testing.T, registry *Registry, opts ...DispatcherOption) *Dispatcher {
	t.Helper()

	dispatcher, err := NewDispatcher(registry, opts...)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return dispatcher
}

func TestInvokeUnknownToolReturnsNotFound(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, NewRegistry())
	result := dispatcher.Invoke(context.Background(), "missing.tool", nil)

	if result.OK() {
		t.Fatal("expected failure for unknown tool")
	}
	if result.Fault.Code != contractx.FaultNotFound {
		t.Fatalf("fault code = %s, want NOT_FOUND", result.Fault.Code)
	}
	if result.Fault.Retriable {
		t.Fatal("NOT_FOUND must not be retriable")
	}
	if result.Fault.Suggestion == "" {
		t.Fatal("every surfaced failure must carry a suggestion")
	}
}

func TestInvokeBadArguments(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("demo.tool", "demo", map[string]*ParamSpec{
		"city":   {Type: TypeString},
		"guests": {Type: TypeInteger, Default: 2},
	}, "", noopHandler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	dispatcher := newTestDispatcher(t, registry)

	cases := []struct {
		name string
		args map[string]any
	}{
		{name: "missing required", args: map[string]any{"guests": 2}},
		{name: "wrong type", args: map[string]any{"city": 42}},
		{name: "unknown argument", args: map[string]any{"city": "Tokyo", "rooms": 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := dispatcher.Invoke(context.Background(), "demo.tool", tc.args)
			if result.OK() {
				t.Fatal("expected failure")
			}
			if result.Fault.Code != contractx.FaultBadArguments {
				t.Fatalf("fault code = %s, want BAD_ARGUMENTS", result.Fault.Code)
			}
			if result.Fault.Retriable {
				t.Fatal("BAD_ARGUMENTS must not be retriable")
			}
		})
	}
}

func TestInvokeHandlerErrorBecomesExecutionError(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("demo.tool", "demo", nil, "", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return nil, errors.New("upstream exploded")
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	dispatcher := newTestDispatcher(t, registry)

	result := dispatcher.Invoke(context.Background(), "demo.tool", nil)
	if result.OK() {
		t.Fatal("expected failure")
	}
	if result.Fault.Code != contractx.FaultExecutionError {
		t.Fatalf("fault code = %s, want EXECUTION_ERROR", result.Fault.Code)
	}
	if !result.Fault.Retriable {
		t.Fatal("EXECUTION_ERROR must be retriable")
	}
	if cause, _ := result.Fault.Details["cause"].(string); cause != "upstream exploded" {
		t.Fatalf("cause = %q, want the handler error text preserved", cause)
	}
}

func TestInvokeHandlerPanicIsContained(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("demo.tool", "demo", nil, "", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		panic("boom")
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	dispatcher := newTestDispatcher(t, registry)

	result := dispatcher.Invoke(context.Background(), "demo.tool", nil)
	if result.OK() {
		t.Fatal("expected failure")
	}
	if result.Fault.Code != contractx.FaultExecutionError {
		t.Fatalf("fault code = %s, want EXECUTION_ERROR", result.Fault.Code)
	}
}

func TestInvokeDeclaredFailurePassesThrough(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("demo.tool", "demo", nil, "", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{
			"error":      true,
			"code":       "DATA_UNAVAILABLE",
			"message":    "no offers for that date",
			"suggestion": "try nearby dates",
		}, nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	dispatcher := newTestDispatcher(t, registry)

	result := dispatcher.Invoke(context.Background(), "demo.tool", nil)
	if result.OK() {
		t.Fatal("declared failure must surface as a fault")
	}
	if result.Fault.Code != contractx.FaultDataUnavailable {
		t.Fatalf("fault code = %s, want DATA_UNAVAILABLE", result.Fault.Code)
	}
	if result.Fault.Message != "no offers for that date" {
		t.Fatalf("message = %q, want the provider's message unchanged", result.Fault.Message)
	}
	if result.Fault.Suggestion != "try nearby dates" {
		t.Fatalf("suggestion = %q, want the provider's suggestion unchanged", result.Fault.Suggestion)
	}
}

// A success payload containing an error field that is not the declared
// convention stays a success: the tag is authoritative.
func TestInvokeSuccessPayloadErrorFieldNotMisread(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("demo.tool", "demo", nil, "", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"error": "none", "value": 7}, nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	dispatcher := newTestDispatcher(t, registry)

	result := dispatcher.Invoke(context.Background(), "demo.tool", nil)
	if !result.OK() {
		t.Fatalf("expected success, got fault %v", result.Fault)
	}
}

func TestInvokeReadOnlyToolIsIdempotent(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("demo.tool", "demo", map[string]*ParamSpec{
		"city": {Type: TypeString},
	}, "", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"city": args["city"], "temp": 21.5}, nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	dispatcher := newTestDispatcher(t, registry)

	args := map[string]any{"city": "Tokyo"}
	first := dispatcher.Invoke(context.Background(), "demo.tool", args)
	second := dispatcher.Invoke(context.Background(), "demo.tool", args)
	if !first.OK() || !second.OK() {
		t.Fatalf("expected two successes, got %v and %v", first.Fault, second.Fault)
	}
	if !reflect.DeepEqual(first.Payload, second.Payload) {
		t.Fatalf("payloads differ: %v vs %v", first.Payload, second.Payload)
	}
}

func TestInvokeTimeout(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("slow.tool", "demo", nil, "", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(30 * time.Second):
			return map[string]any{}, nil
		}
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// The configured timeout is clamped to the bounded provider range, so
	// the test uses the minimum and cancels the parent early instead of
	// waiting it out.
	dispatcher := newTestDispatcher(t, registry, WithToolTimeout("slow.tool", time.Nanosecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := dispatcher.Invoke(ctx, "slow.tool", nil)
	if time.Since(start) > 5*time.Second {
		t.Fatal("invoke did not respect context cancellation")
	}
	if result.OK() {
		t.Fatal("expected failure")
	}
	if result.Fault.Code != contractx.FaultTimeout {
		t.Fatalf("fault code = %s, want TIMEOUT", result.Fault.Code)
	}
}

func TestInvokeAllJoinsAllCalls(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register("echo.tool", "demo", map[string]*ParamSpec{
		"city": {Type: TypeString},
	}, "", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"city": args["city"]}, nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	dispatcher := newTestDispatcher(t, registry)

	reqs := []contractx.InvocationRequest{
		{Tool: "echo.tool", Args: map[string]any{"city": "Tokyo"}},
		{Tool: "missing.tool"},
		{Tool: "echo.tool", Args: map[string]any{"city": "Osaka"}},
	}
	results := dispatcher.InvokeAll(context.Background(), reqs)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results[0].OK() || results[0].Payload["city"] != "Tokyo" {
		t.Fatalf("results[0] = %+v, want Tokyo success", results[0])
	}
	if results[1].OK() || results[1].Fault.Code != contractx.FaultNotFound {
		t.Fatalf("results[1] = %+v, want NOT_FOUND", results[1])
	}
	if !results[2].OK() || results[2].Payload["city"] != "Osaka" {
		t.Fatalf("results[2] = %+v, want Osaka success", results[2])
	}
}
