// Package mcpserver declares the tools this server offers and builds the
// mcp-go server that decodes protocol messages and calls them.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"mcp-toolserver/service"

	"github.com/jonboulle/clockwork"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
)

const Version = "1.0.0"

// ToolObserver is told the outcome of every completed tool call.
type ToolObserver func(tool string, isError bool)

type Server struct {
	mcp        *server.MCPServer
	dispatcher *service.ToolDispatcher
	clock      service.Clock
	observers  []ToolObserver
}

type Option func(*Server)

func WithClock(clock service.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

func WithToolObserver(fn ToolObserver) Option {
	return func(s *Server) { s.observers = append(s.observers, fn) }
}

func NewServer(name string, opts ...Option) (*Server, error) {
	s := &Server{
		dispatcher: service.NewToolDispatcher(),
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(s.afterCallTool)
	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		log.Debug().Str("session_id", session.SessionID()).Msg("protocol session registered")
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		log.Debug().Str("session_id", session.SessionID()).Msg("protocol session unregistered")
	})

	s.mcp = server.NewMCPServer(name, Version,
		server.WithToolCapabilities(false),
		server.WithHooks(hooks),
		server.WithToolHandlerMiddleware(toolErrorMiddleware),
	)

	err := s.dispatcher.RegisterToolEndpoint(s.currentTimeTool(), s.calculateTool(), s.echoTool())
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	for _, endpoint := range s.dispatcher.Endpoints() {
		s.mcp.AddTool(OpenAIFunctionToMCPTool(&endpoint.Def), s.callHandler(endpoint.Name))
	}
	return s, nil
}

// MCP returns the protocol server. It satisfies session.MessageHandler.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

func (s *Server) Tools() []service.ToolEndPoint { return s.dispatcher.Endpoints() }

func (s *Server) callHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		res, err := s.dispatcher.Run(ctx, name, args)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(res), nil
	}
}

func (s *Server) afterCallTool(ctx context.Context, id any, request *mcp.CallToolRequest, result *mcp.CallToolResult) {
	if result == nil {
		return
	}
	for _, observe := range s.observers {
		observe(request.Params.Name, result.IsError)
	}
}
