package tool

import (
	"testing"
	"time"

	statex "github.com/voyago/voyago/agent/state"
)

func newNormalizerFixture(t *testing.T) (*Normalizer, *Registry) {
	t.Helper()

	registry := NewRegistry()
	if err := registry.Register("hotels.search", "search hotels", map[string]*ParamSpec{
		"city":   {Type: TypeString},
		"guests": {Type: TypeInteger, Default: 2},
		"direct": {Type: TypeBoolean, Default: false},
		"budget": {Type: TypeNumber, Default: 0.0},
		"filters": {Type: TypeObject, Default: map[string]any{},
			Fields: map[string]*ParamSpec{
				"max_price": {Type: TypeNumber, Default: 0.0},
			},
		},
	}, "hotel offers", noopHandler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register("hotels.book", "book a hotel", map[string]*ParamSpec{
		"offer_id": {Type: TypeString},
		"guests":   {Type: TypeInteger, Default: 2},
	}, "booking confirmation", noopHandler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	normalizer := NewNormalizer(registry, map[string]RewriteRule{
		"hotels.search": {
			CompletionTool: "hotels.book",
			IdentifierArg:  "offer_id",
			SourceStep:     "hotel_result",
			SourceListKey:  "offers",
			SourceIDKey:    "id",
		},
	})
	return normalizer, registry
}

func TestNormalizeCoercesLooseTypes(t *testing.T) {
	t.Parallel()

	normalizer, _ := newNormalizerFixture(t)
	task := statex.NewTaskState("find a hotel in Tokyo", time.Now())

	tool, args := normalizer.Normalize("hotels.search", map[string]any{
		"city":   "Tokyo",
		"guests": "3",
		"direct": "true",
		"budget": "150.5",
	}, task.Description, task)

	if tool != "hotels.search" {
		t.Fatalf("tool = %q, want unchanged", tool)
	}
	if args["guests"] != 3 {
		t.Fatalf("guests = %#v, want coerced int 3", args["guests"])
	}
	if args["direct"] != true {
		t.Fatalf("direct = %#v, want coerced bool true", args["direct"])
	}
	if args["budget"] != 150.5 {
		t.Fatalf("budget = %#v, want coerced float 150.5", args["budget"])
	}
}

func TestNormalizeInjectsDefaults(t *testing.T) {
	t.Parallel()

	normalizer, _ := newNormalizerFixture(t)
	task := statex.NewTaskState("find a hotel in Tokyo", time.Now())

	_, args := normalizer.Normalize("hotels.search", map[string]any{"city": "Tokyo"}, task.Description, task)
	if args["guests"] != 2 {
		t.Fatalf("guests = %#v, want default 2", args["guests"])
	}
	if args["direct"] != false {
		t.Fatalf("direct = %#v, want default false", args["direct"])
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	normalizer, _ := newNormalizerFixture(t)
	task := statex.NewTaskState("find a hotel in Tokyo", time.Now())

	filters := map[string]any{"max_price": "150.5"}
	raw := map[string]any{"city": "Tokyo", "guests": "3", "filters": filters}
	_, args := normalizer.Normalize("hotels.search", raw, task.Description, task)
	if raw["guests"] != "3" {
		t.Fatalf("raw guests = %#v, input must stay untouched", raw["guests"])
	}
	if _, injected := raw["direct"]; injected {
		t.Fatal("defaults must not be injected into the caller's map")
	}
	// Nested maps belong to the caller too; coercion must work on a copy.
	if filters["max_price"] != "150.5" {
		t.Fatalf("raw filters.max_price = %#v, nested input must stay untouched", filters["max_price"])
	}
	shaped, ok := args["filters"].(map[string]any)
	if !ok {
		t.Fatalf("filters = %#v, want object", args["filters"])
	}
	if shaped["max_price"] != 150.5 {
		t.Fatalf("shaped filters.max_price = %#v, want coerced float 150.5", shaped["max_price"])
	}
}

func TestNormalizeRewritesCompletionIntent(t *testing.T) {
	t.Parallel()

	normalizer, _ := newNormalizerFixture(t)
	task := statex.NewTaskState("book the hotel we talked about", time.Now())
	if err := task.AcceptResult("hotel_result", map[string]any{
		"offers": []any{
			map[string]any{"id": "HT-42", "name": "Grand"},
			map[string]any{"id": "HT-43", "name": "Plaza"},
		},
	}, time.Now()); err != nil {
		t.Fatalf("AcceptResult() error = %v", err)
	}

	tool, args := normalizer.Normalize("hotels.search", map[string]any{"city": "Tokyo"}, task.Description, task)
	if tool != "hotels.book" {
		t.Fatalf("tool = %q, want redirect to hotels.book", tool)
	}
	if args["offer_id"] != "HT-42" {
		t.Fatalf("offer_id = %#v, want identifier from the prior step's first offer", args["offer_id"])
	}
}

func TestNormalizeNoRewriteWithDiscoveryVerb(t *testing.T) {
	t.Parallel()

	normalizer, _ := newNormalizerFixture(t)
	task := statex.NewTaskState("find hotels I could book later", time.Now())

	tool, _ := normalizer.Normalize("hotels.search", map[string]any{"city": "Tokyo"}, task.Description, task)
	if tool != "hotels.search" {
		t.Fatalf("tool = %q, discovery-flavored text must not redirect", tool)
	}
}

// When no identifier can be extracted the call passes through unchanged and
// the dispatcher's validation is the backstop.
func TestNormalizeRewriteFailsOpen(t *testing.T) {
	t.Parallel()

	normalizer, _ := newNormalizerFixture(t)
	task := statex.NewTaskState("book the hotel", time.Now())

	tool, args := normalizer.Normalize("hotels.search", map[string]any{"city": "Tokyo"}, task.Description, task)
	if tool != "hotels.search" {
		t.Fatalf("tool = %q, want passthrough without prior results", tool)
	}
	if _, injected := args["offer_id"]; injected {
		t.Fatal("no identifier must be injected when extraction fails")
	}
}

func TestNormalizeUnknownToolPassesThrough(t *testing.T) {
	t.Parallel()

	normalizer, _ := newNormalizerFixture(t)
	task := statex.NewTaskState("find a hotel", time.Now())

	raw := map[string]any{"city": "Tokyo"}
	tool, args := normalizer.Normalize("missing.tool", raw, task.Description, task)
	if tool != "missing.tool" {
		t.Fatalf("tool = %q, want unchanged", tool)
	}
	if args["city"] != "Tokyo" {
		t.Fatalf("args = %#v, want unchanged", args)
	}
}
