package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"mcp-toolserver/service"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

type CurrentTimeArgs struct {
	Timezone string `json:"timezone"`
}

type CalculateArgs struct {
	Expression string `json:"expression"`
}

type EchoArgs struct {
	Message   string `json:"message"`
	Uppercase bool   `json:"uppercase"`
}

func bindArgs(args json.RawMessage, target any) error {
	if err := json.Unmarshal(args, target); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func (s *Server) currentTimeTool() service.ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "get_current_time",
		Description: "Returns the current date and time in the given IANA timezone, as an RFC 3339 timestamp and a human readable string.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"timezone": {
					Type:        jsonschema.String,
					Description: "IANA timezone name such as America/New_York or Asia/Tokyo. Defaults to UTC.",
				},
			},
		},
	}
	handler := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args CurrentTimeArgs
		if err := bindArgs(raw, &args); err != nil {
			return "", err
		}
		res, err := service.CurrentTime(s.clock, args.Timezone)
		if err != nil {
			return "", err
		}
		return res.String(), nil
	}
	return service.ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

func (s *Server) calculateTool() service.ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "calculate",
		Description: "Evaluates an arithmetic expression using + - * / and parentheses. Only digits, whitespace and those operators are accepted.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"expression": {
					Type:        jsonschema.String,
					Description: "The expression to evaluate, e.g. (2 + 3) * 4.",
				},
			},
			Required: []string{"expression"},
		},
	}
	handler := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args CalculateArgs
		if err := bindArgs(raw, &args); err != nil {
			return "", err
		}
		res, err := service.Calculate(args.Expression)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", args.Expression, res), nil
	}
	return service.ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}

func (s *Server) echoTool() service.ToolEndPoint {
	def := openai.FunctionDefinition{
		Name:        "echo",
		Description: "Echoes the message back, optionally in upper case.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"message": {
					Type:        jsonschema.String,
					Description: "The text to echo.",
				},
				"uppercase": {
					Type:        jsonschema.Boolean,
					Description: "Convert the message to upper case.",
				},
			},
			Required: []string{"message"},
		},
	}
	handler := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args EchoArgs
		if err := bindArgs(raw, &args); err != nil {
			return "", err
		}
		return service.Echo(args.Message, args.Uppercase), nil
	}
	return service.ToolEndPoint{Name: def.Name, Def: def, Handler: handler}
}
