package tool

import (
	"context"
	"fmt"
	"strings"

	einoschema "github.com/cloudwego/eino/schema"

	contractx "github.com/voyago/voyago/agent/contract"
)

// ParamType is the fixed table of schema primitives a parameter maps to.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

// ParamSpec declares one parameter of a tool. A parameter with no default is
// required. Object params recurse through Fields when the nested shape is
// statically known; array params describe their element through Elem, which
// may be nil (the schema builder fills a generic object in that case).
type ParamSpec struct {
	Type    ParamType
	Desc    string
	Default any
	Fields  map[string]*ParamSpec
	Elem    *ParamSpec
	Enum    []string
}

// Required reports whether the parameter must be present in the arguments.
func (p *ParamSpec) Required() bool {
	return p != nil && p.Default == nil
}

// Handler is the executable implementation behind a descriptor. It may block
// or suspend on I/O; the dispatcher treats both the same. Declared provider
// failures come back as a payload with error=true, not as a Go error.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Descriptor is the registry's immutable schema+metadata record for one tool.
type Descriptor struct {
	Name        string
	Description string
	Params      map[string]*ParamSpec
	OutputShape string

	handler Handler
}

// NewDescriptor validates and builds a descriptor.
func NewDescriptor(name, description string, params map[string]*ParamSpec, outputShape string, handler Handler) (*Descriptor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: tool %s has no handler", contractx.ErrValidation, name)
	}
	for pname, spec := range params {
		if err := validateSpec(pname, spec); err != nil {
			return nil, err
		}
	}
	return &Descriptor{
		Name:        name,
		Description: strings.TrimSpace(description),
		Params:      params,
		OutputShape: strings.TrimSpace(outputShape),
		handler:     handler,
	}, nil
}

func validateSpec(name string, spec *ParamSpec) error {
	if spec == nil {
		return fmt.Errorf("%w: parameter %s has nil spec", contractx.ErrValidation, name)
	}
	switch spec.Type {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray:
	default:
		return fmt.Errorf("%w: parameter %s has unknown type %q", contractx.ErrValidation, name, spec.Type)
	}
	for fname, f := range spec.Fields {
		if err := validateSpec(name+"."+fname, f); err != nil {
			return err
		}
	}
	if spec.Elem != nil {
		return validateSpec(name+"[]", spec.Elem)
	}
	return nil
}

// InputSchema renders the descriptor's parameters as a JSON-schema object
// tree, the shape the tool-listing interface exposes.
func (d *Descriptor) InputSchema() map[string]any {
	properties := make(map[string]any, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for name, spec := range d.Params {
		properties[name] = schemaNode(spec)
		if spec.Required() {
			required = append(required, name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func schemaNode(spec *ParamSpec) map[string]any {
	node := map[string]any{
		"type": string(spec.Type),
	}
	if spec.Desc != "" {
		node["description"] = spec.Desc
	}
	if len(spec.Enum) > 0 {
		node["enum"] = spec.Enum
	}

	switch spec.Type {
	case TypeObject:
		if len(spec.Fields) > 0 {
			properties := make(map[string]any, len(spec.Fields))
			required := make([]string, 0, len(spec.Fields))
			for name, f := range spec.Fields {
				properties[name] = schemaNode(f)
				if f.Required() {
					required = append(required, name)
				}
			}
			node["properties"] = properties
			if len(required) > 0 {
				node["required"] = required
			}
		}
	case TypeArray:
		// Consumers reject arrays without an items clause, so the element
		// shape defaults to a generic object when not statically known.
		if spec.Elem != nil {
			node["items"] = schemaNode(spec.Elem)
		} else {
			node["items"] = map[string]any{"type": "object"}
		}
	}
	return node
}

// ToolInfo converts the descriptor into the shape an orchestrating chat
// model binds tools with.
func (d *Descriptor) ToolInfo() *einoschema.ToolInfo {
	params := make(map[string]*einoschema.ParameterInfo, len(d.Params))
	for name, spec := range d.Params {
		params[name] = parameterInfo(spec)
	}
	return &einoschema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Description,
		ParamsOneOf: einoschema.NewParamsOneOfByParams(params),
	}
}

func parameterInfo(spec *ParamSpec) *einoschema.ParameterInfo {
	info := &einoschema.ParameterInfo{
		Desc:     spec.Desc,
		Required: spec.Required(),
		Enum:     spec.Enum,
	}
	switch spec.Type {
	case TypeInteger:
		info.Type = einoschema.Integer
	case TypeNumber:
		info.Type = einoschema.Number
	case TypeBoolean:
		info.Type = einoschema.Boolean
	case TypeObject:
		info.Type = einoschema.Object
		if len(spec.Fields) > 0 {
			sub := make(map[string]*einoschema.ParameterInfo, len(spec.Fields))
			for name, f := range spec.Fields {
				sub[name] = parameterInfo(f)
			}
			info.SubParams = sub
		}
	case TypeArray:
		info.Type = einoschema.Array
		if spec.Elem != nil {
			info.ElemInfo = parameterInfo(spec.Elem)
		} else {
			info.ElemInfo = &einoschema.ParameterInfo{Type: einoschema.Object}
		}
	default:
		info.Type = einoschema.String
	}
	return info
}
