package tool

import (
	"fmt"
	"sort"
	"sync"

	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/voyago/voyago/agent/contract"
)

// Registry holds tool descriptors for the process lifetime. Registration
// happens once at startup before traffic; lookups after that are read-only,
// so a plain RWMutex is enough.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]*Descriptor, 16),
	}
}

// Register adds a descriptor. Re-registering a name overwrites the prior
// descriptor; there is no collision detection. That keeps hot-reloading a
// tool set possible without a restart (accepted limitation).
func (r *Registry) Register(name, description string, params map[string]*ParamSpec, outputShape string, handler Handler) error {
	desc, err := NewDescriptor(name, description, params, outputShape, handler)
	if err != nil {
		return err
	}

	r.mu.Lock()
	_, replaced := r.descriptors[desc.Name]
	r.descriptors[desc.Name] = desc
	r.mu.Unlock()

	log.Debug().
		Str("tool", desc.Name).
		Bool("replaced", replaced).
		Msg("tool registered")
	return nil
}

// Resolve returns the descriptor for a name.
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	r.mu.RLock()
	desc, ok := r.descriptors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrToolNotFound, name)
	}
	return desc, nil
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	out := make([]*Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ToolInfos renders the whole registry for chat-model binding.
func (r *Registry) ToolInfos() []*einoschema.ToolInfo {
	descs := r.List()
	infos := make([]*einoschema.ToolInfo, 0, len(descs))
	for _, d := range descs {
		infos = append(infos, d.ToolInfo())
	}
	return infos
}

// Listing is one entry of the tool-listing interface an orchestrating agent
// reads to learn what it may call.
type Listing struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
	OutputShape string         `json:"output_shape"`
}

// Listings renders every registered tool as a wire-facing listing entry.
func (r *Registry) Listings() []Listing {
	descs := r.List()
	out := make([]Listing, 0, len(descs))
	for _, d := range descs {
		out = append(out, Listing{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema(),
			OutputShape: d.OutputShape,
		})
	}
	return out
}
