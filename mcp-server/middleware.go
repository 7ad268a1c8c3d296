package mcpserver

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// toolErrorMiddleware turns handler errors and panics into tool results with
// isError set, so a failing tool never ends the session.
func toolErrorMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		logger := toolLogger(ctx, request.Params.Name)
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("tool panicked")
				result = mcp.NewToolResultError(fmt.Sprintf("tool %s failed unexpectedly", request.Params.Name))
				err = nil
			}
		}()

		result, err = next(ctx, request)
		if err != nil {
			logger.Warn().Err(err).Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return result, nil
	}
}

func toolLogger(ctx context.Context, tool string) zerolog.Logger {
	l := log.With().Str("tool", tool)
	if session := server.ClientSessionFromContext(ctx); session != nil {
		l = l.Str("session_id", session.SessionID())
	}
	return l.Logger()
}
