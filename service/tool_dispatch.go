package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var ErrToolNotFound = errors.New("tool not found")

// ToolEndPoint binds a schema to the function executing it. Handler receives
// the raw JSON arguments after they passed schema validation.
type ToolEndPoint struct {
	Name    string
	Def     openai.FunctionDefinition
	Handler func(ctx context.Context, args json.RawMessage) (string, error)
}

type ToolDispatcher struct {
	toolMap map[string]ToolEndPoint
	order   []string
}

func NewToolDispatcher() *ToolDispatcher {
	return &ToolDispatcher{
		toolMap: map[string]ToolEndPoint{},
	}
}

// RegisterToolEndpoint adds endpoints, skipping any whose name is already
// taken. All conflicts are reported together.
func (td *ToolDispatcher) RegisterToolEndpoint(endpoints ...ToolEndPoint) error {
	err := []error{}
	for _, endpoint := range endpoints {
		if endpoint.Name == "" || endpoint.Handler == nil {
			err = append(err, fmt.Errorf("tool %q is missing a name or handler", endpoint.Name))
			continue
		}
		_, exist := td.toolMap[endpoint.Name]
		if exist {
			err = append(err, fmt.Errorf("tool with name %s already exist", endpoint.Name))
		} else {
			td.toolMap[endpoint.Name] = endpoint
			td.order = append(td.order, endpoint.Name)
		}
	}
	return errors.Join(err...)
}

// Run validates args against the tool's schema and invokes it.
func (td *ToolDispatcher) Run(ctx context.Context, name string, args json.RawMessage) (string, error) {
	endpoint, exist := td.toolMap[name]
	if !exist {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}
	if schema, ok := endpoint.Def.Parameters.(jsonschema.Definition); ok {
		var data any
		if err := json.Unmarshal(args, &data); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		if !jsonschema.Validate(schema, data) {
			return "", fmt.Errorf("invalid arguments for %s: expected %s", name, describeSchema(schema))
		}
	}
	return endpoint.Handler(ctx, args)
}

// Endpoints returns registered tools in registration order.
func (td *ToolDispatcher) Endpoints() []ToolEndPoint {
	res := make([]ToolEndPoint, 0, len(td.order))
	for _, name := range td.order {
		res = append(res, td.toolMap[name])
	}
	return res
}

// describeSchema renders an object schema as {name: type, ...}, marking
// required properties with a trailing '!'.
func describeSchema(schema jsonschema.Definition) string {
	if schema.Type != jsonschema.Object {
		return string(schema.Type)
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		part := fmt.Sprintf("%s: %s", name, schema.Properties[name].Type)
		if slices.Contains(schema.Required, name) {
			part += "!"
		}
		parts = append(parts, part)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
