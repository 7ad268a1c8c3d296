package mcpserver

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// OpenAIFunctionToMCPTool exposes an OpenAI style function definition as an
// MCP tool with the same name, description and input schema. The tools here
// only read state, so they are annotated read-only.
func OpenAIFunctionToMCPTool(fn *openai.FunctionDefinition) mcp.Tool {
	tool := mcp.NewToolWithRawSchema(fn.Name, fn.Description, convertParameters(fn.Parameters))
	tool.Annotations = mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(true),
		DestructiveHint: mcp.ToBoolPtr(false),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}
	return tool
}

func convertParameters(params any) json.RawMessage {
	switch p := params.(type) {
	case nil:
		return emptyObjectSchema
	case jsonschema.Definition:
		return marshalSchema(definitionToMap(p))
	case *jsonschema.Definition:
		if p == nil {
			return emptyObjectSchema
		}
		return marshalSchema(definitionToMap(*p))
	case json.RawMessage:
		return p
	case []byte:
		return p
	default:
		return marshalSchema(p)
	}
}

// definitionToMap keeps only the keywords MCP clients understand. An object
// schema always carries a properties member, even when empty.
func definitionToMap(def jsonschema.Definition) map[string]any {
	schema := map[string]any{}

	setString(schema, "type", string(def.Type))
	setString(schema, "description", def.Description)
	setArray(schema, "enum", def.Enum)
	setArray(schema, "required", def.Required)

	if def.Properties != nil || def.Type == jsonschema.Object {
		props := make(map[string]any, len(def.Properties))
		for name, prop := range def.Properties {
			props[name] = definitionToMap(prop)
		}
		schema["properties"] = props
	}
	if def.Items != nil {
		schema["items"] = definitionToMap(*def.Items)
	}
	if def.AdditionalProperties != nil {
		schema["additionalProperties"] = def.AdditionalProperties
	}
	if def.Nullable {
		schema["nullable"] = true
	}
	if def.Ref != "" {
		schema["$ref"] = def.Ref
	}
	if def.Defs != nil {
		defs := make(map[string]any, len(def.Defs))
		for name, d := range def.Defs {
			defs[name] = definitionToMap(d)
		}
		schema["$defs"] = defs
	}
	return schema
}

func setString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func setArray(m map[string]any, key string, value []string) {
	if len(value) > 0 {
		m[key] = value
	}
}

func marshalSchema(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return emptyObjectSchema
	}
	return data
}
