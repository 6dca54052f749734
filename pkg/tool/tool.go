package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/harun/agentcore/pkg/execution"
	"github.com/harun/agentcore/pkg/llm"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// maxOutputSize bounds the text returned to the model for a single call.
const maxOutputSize = 10 * 1024

const truncatedSuffix = "\n... [output truncated]"

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

var validTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// Handler executes a tool call. args has already been validated against the
// tool's declared schema.
type Handler func(ctx context.Context, args map[string]interface{}, ec *execution.Context) (interface{}, error)

// Param declares one named argument of a tool. Parameters are required unless
// Optional is set.
type Param struct {
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Enum        []string    `json:"enum,omitempty"`
	Items       *Param      `json:"items,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Optional    bool        `json:"optional,omitempty"`
}

// Tool is a named, schema-described capability the model may invoke.
type Tool struct {
	name        string
	description string
	params      map[string]Param
	schema      map[string]interface{}
	compiled    *gojsonschema.Schema
	handler     Handler
}

// New builds a tool and derives its JSON schema from params.
func New(name, description string, params map[string]Param, handler Handler) (*Tool, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid tool name %q", name)
	}
	if description == "" {
		return nil, fmt.Errorf("tool description cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("tool handler cannot be nil")
	}

	copied := make(map[string]Param, len(params))
	for pname, p := range params {
		if pname == "" {
			return nil, fmt.Errorf("parameter name cannot be empty")
		}
		if err := validateParam(pname, p); err != nil {
			return nil, err
		}
		copied[pname] = p
	}

	schema := BuildSchema(copied)
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema for tool %s: %w", name, err)
	}

	return &Tool{
		name:        name,
		description: description,
		params:      copied,
		schema:      schema,
		compiled:    compiled,
		handler:     handler,
	}, nil
}

// MustNew is like New but panics on error. Intended for built-in tools.
func MustNew(name, description string, params map[string]Param, handler Handler) *Tool {
	t, err := New(name, description, params, handler)
	if err != nil {
		panic(err)
	}
	return t
}

func validateParam(name string, p Param) error {
	if !validTypes[p.Type] {
		return fmt.Errorf("invalid parameter type %q for %s", p.Type, name)
	}
	if p.Type == "array" && p.Items != nil {
		return validateParam(name+"[]", *p.Items)
	}
	return nil
}

// BuildSchema derives the object schema for a parameter set. The required
// list is sorted so the result does not depend on map iteration order, and
// property schemas never carry a required flag.
func BuildSchema(params map[string]Param) map[string]interface{} {
	properties := make(map[string]interface{}, len(params))
	required := []string{}

	for name, p := range params {
		properties[name] = propertySchema(p)
		if !p.Optional {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func propertySchema(p Param) map[string]interface{} {
	prop := map[string]interface{}{
		"type": p.Type,
	}
	if p.Description != "" {
		prop["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		prop["enum"] = append([]string(nil), p.Enum...)
	}
	if p.Default != nil {
		prop["default"] = p.Default
	}
	if p.Type == "array" {
		items := Param{Type: "string"}
		if p.Items != nil {
			items = *p.Items
		}
		prop["items"] = propertySchema(items)
	}
	return prop
}

// Name returns the tool name
func (t *Tool) Name() string { return t.name }

// Description returns the tool description
func (t *Tool) Description() string { return t.description }

// Schema returns a copy of the declared JSON schema.
func (t *Tool) Schema() map[string]interface{} {
	return BuildSchema(t.params)
}

// Definition returns the model-facing description of the tool.
func (t *Tool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.Schema(),
	}
}

// Validate checks args against the declared schema.
func (t *Tool) Validate(args map[string]interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	result, err := t.compiled.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		errs := []string{}
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}

// Execute validates args and runs the handler. Every failure, including a
// handler panic, is returned as an *ExecutionError.
func (t *Tool) Execute(ctx context.Context, args map[string]interface{}, ec *execution.Context) (out interface{}, err error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	if verr := t.Validate(args); verr != nil {
		return nil, &ExecutionError{Tool: t.name, Cause: fmt.Errorf("invalid arguments: %w", verr)}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("tool", t.name).Interface("panic", r).Msg("Tool handler panicked")
			out = nil
			err = &ExecutionError{Tool: t.name, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	out, err = t.handler(ctx, args, ec)
	if err != nil {
		return nil, &ExecutionError{Tool: t.name, Cause: err}
	}
	return out, nil
}

// ParseArguments decodes the raw JSON arguments of a tool call.
func ParseArguments(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

// FormatOutput renders a handler result as the text sent back to the model.
func FormatOutput(output interface{}) string {
	var str string
	switch v := output.(type) {
	case nil:
		str = ""
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			str = fmt.Sprintf("%v", v)
		} else {
			str = string(data)
		}
	}

	if len(str) <= maxOutputSize {
		return str
	}
	// Cut on a rune boundary so the model never sees a split character.
	cut := maxOutputSize
	for cut > 0 && !utf8.RuneStart(str[cut]) {
		cut--
	}
	log.Warn().
		Int("original", len(str)).
		Int("truncated", cut).
		Msg("Tool output truncated")
	return str[:cut] + truncatedSuffix
}
