package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	mcpserver "mcp-toolserver/mcp-server"
	"mcp-toolserver/service"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ErrToolFailed wraps the text of a tool result that had isError set.
var ErrToolFailed = errors.New("tool reported an error")

const clientName = "mcp-toolserver-probe"

// ClientMgr keeps SSE connections to MCP servers, keyed by the name each
// server reports in its initialize response.
type ClientMgr struct {
	mu        sync.Mutex
	clientMap map[string]*client.Client
}

func NewClientMgr() *ClientMgr {
	return &ClientMgr{
		clientMap: map[string]*client.Client{},
	}
}

// Connect opens an SSE stream to url, sending apiKey as a bearer token when
// it is not empty, and returns the server name. The stream lives until ctx
// ends or the client is closed.
func (mgr *ClientMgr) Connect(ctx context.Context, url string, apiKey string) (string, error) {
	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	c, err := client.NewSSEMCPClient(url, client.WithHeaders(headers))
	if err != nil {
		return "", fmt.Errorf("create client for %s: %w", url, err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return "", fmt.Errorf("connect to %s: %w", url, err)
	}

	res, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: mcpserver.Version,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		_ = c.Close()
		return "", fmt.Errorf("initialize %s: %w", url, err)
	}

	name := res.ServerInfo.Name
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if _, exist := mgr.clientMap[name]; exist {
		_ = c.Close()
		return "", fmt.Errorf("mcp server %s already exist", name)
	}
	mgr.clientMap[name] = c
	log.Debug().Str("server", name).Str("url", url).Msg("connected to mcp server")
	return name, nil
}

func (mgr *ClientMgr) CloseByName(name string) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	c, exist := mgr.clientMap[name]
	if !exist {
		return fmt.Errorf("client %s not exist", name)
	}
	delete(mgr.clientMap, name)
	return c.Close()
}

func (mgr *ClientMgr) Close() error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	var errList []error
	for name, c := range mgr.clientMap {
		if err := c.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close %s: %w", name, err))
		}
		delete(mgr.clientMap, name)
	}
	return errors.Join(errList...)
}

// LoadAllTools lists the tools of every connected server as endpoints whose
// handlers call the remote tool.
func (mgr *ClientMgr) LoadAllTools(ctx context.Context) ([]service.ToolEndPoint, error) {
	mgr.mu.Lock()
	names := make([]string, 0, len(mgr.clientMap))
	for name := range mgr.clientMap {
		names = append(names, name)
	}
	mgr.mu.Unlock()
	sort.Strings(names)

	var endpoints []service.ToolEndPoint
	var errList []error
	for _, name := range names {
		res, err := mgr.loadTools(ctx, name)
		if err != nil {
			errList = append(errList, err)
			continue
		}
		endpoints = append(endpoints, res...)
	}
	if err := errors.Join(errList...); err != nil {
		return nil, err
	}
	return endpoints, nil
}

func (mgr *ClientMgr) loadTools(ctx context.Context, server string) ([]service.ToolEndPoint, error) {
	c, err := mgr.get(server)
	if err != nil {
		return nil, err
	}
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools of %s: %w", server, err)
	}
	endpoints := make([]service.ToolEndPoint, 0, len(res.Tools))
	for _, tool := range res.Tools {
		def, err := convertToFunctionDefinition(tool)
		if err != nil {
			return nil, fmt.Errorf("tool %s of %s: %w", tool.Name, server, err)
		}
		name := tool.Name
		endpoints = append(endpoints, service.ToolEndPoint{
			Name: name,
			Def:  def,
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				return mgr.CallTool(ctx, server, name, args)
			},
		})
	}
	return endpoints, nil
}

// CallTool invokes a tool on the named server and joins its text content.
// A result with isError set comes back as ErrToolFailed.
func (mgr *ClientMgr) CallTool(ctx context.Context, server string, tool string, args json.RawMessage) (string, error) {
	c, err := mgr.get(server)
	if err != nil {
		return "", err
	}
	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return "", fmt.Errorf("decode arguments for %s: %w", tool, err)
		}
	}
	res, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      tool,
			Arguments: arguments,
		},
	})
	if err != nil {
		return "", fmt.Errorf("call %s on %s: %w", tool, server, err)
	}

	var builder strings.Builder
	for i, content := range res.Content {
		if text, ok := content.(mcp.TextContent); ok {
			if i > 0 {
				builder.WriteByte('\n')
			}
			builder.WriteString(text.Text)
		}
	}
	if res.IsError {
		return "", fmt.Errorf("%w: %s", ErrToolFailed, builder.String())
	}
	return builder.String(), nil
}

func (mgr *ClientMgr) get(server string) (*client.Client, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	c, exist := mgr.clientMap[server]
	if !exist {
		return nil, fmt.Errorf("client %s not exist", server)
	}
	return c, nil
}

// convertToFunctionDefinition reads a listed tool's input schema back into
// the jsonschema form used by service.ToolDispatcher.
func convertToFunctionDefinition(tool mcp.Tool) (openai.FunctionDefinition, error) {
	raw, err := json.Marshal(tool)
	if err != nil {
		return openai.FunctionDefinition{}, err
	}
	var listed struct {
		InputSchema jsonschema.Definition `json:"inputSchema"`
	}
	if err := json.Unmarshal(raw, &listed); err != nil {
		return openai.FunctionDefinition{}, fmt.Errorf("decode input schema: %w", err)
	}
	return openai.FunctionDefinition{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters:  listed.InputSchema,
	}, nil
}
