package mcpserver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	mcpserver "mcp-toolserver/mcp-server"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func (r toolResult) text() string {
	if len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}

type harness struct {
	t      *testing.T
	server *mcpserver.Server
	nextID int
}

func (h *harness) rpc(method string, params any) rpcResponse {
	h.t.Helper()
	h.nextID++
	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      h.nextID,
		"method":  method,
		"params":  params,
	})
	require.NoError(h.t, err)

	msg := h.server.MCP().HandleMessage(context.Background(), raw)
	require.NotNil(h.t, msg)
	data, err := json.Marshal(msg)
	require.NoError(h.t, err)

	var resp rpcResponse
	require.NoError(h.t, json.Unmarshal(data, &resp))
	return resp
}

func (h *harness) callTool(name string, args any) toolResult {
	h.t.Helper()
	resp := h.rpc("tools/call", map[string]any{"name": name, "arguments": args})
	require.Nil(h.t, resp.Error)
	var res toolResult
	require.NoError(h.t, json.Unmarshal(resp.Result, &res))
	return res
}

func newHarness(t *testing.T, opts ...mcpserver.Option) *harness {
	s, err := mcpserver.NewServer("test-server", opts...)
	require.NoError(t, err)
	h := &harness{t: t, server: s}
	resp := h.rpc("initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "test", "version": "0.0.1"},
		"capabilities":    map[string]any{},
	})
	require.Nil(t, resp.Error)
	return h
}

func TestServer(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 10, 15, 4, 5, 0, time.UTC))

	var mu sync.Mutex
	observed := []string{}
	h := newHarness(t,
		mcpserver.WithClock(clock),
		mcpserver.WithToolObserver(func(tool string, isError bool) {
			mu.Lock()
			defer mu.Unlock()
			observed = append(observed, fmt.Sprintf("%s:%t", tool, isError))
		}),
	)

	t.Run("lists tools", func(t *testing.T) {
		resp := h.rpc("tools/list", map[string]any{})
		require.Nil(t, resp.Error)

		var listed struct {
			Tools []struct {
				Name        string `json:"name"`
				InputSchema struct {
					Type       string                     `json:"type"`
					Properties map[string]json.RawMessage `json:"properties"`
					Required   []string                   `json:"required"`
				} `json:"inputSchema"`
			} `json:"tools"`
		}
		require.NoError(t, json.Unmarshal(resp.Result, &listed))

		names := map[string][]string{}
		for _, tool := range listed.Tools {
			assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
			names[tool.Name] = tool.InputSchema.Required
		}
		assert.Len(t, names, 3)
		assert.Contains(t, names, "get_current_time")
		assert.Empty(t, names["get_current_time"])
		assert.Equal(t, []string{"expression"}, names["calculate"])
		assert.Equal(t, []string{"message"}, names["echo"])
	})

	t.Run("get_current_time", func(t *testing.T) {
		res := h.callTool("get_current_time", map[string]any{"timezone": "Asia/Tokyo"})
		assert.False(t, res.IsError)
		assert.Contains(t, res.text(), "Asia/Tokyo")
		assert.Contains(t, res.text(), "2024-03-11T00:04:05+09:00")

		res = h.callTool("get_current_time", map[string]any{})
		assert.False(t, res.IsError)
		assert.Contains(t, res.text(), "UTC")

		res = h.callTool("get_current_time", map[string]any{"timezone": "Not/AZone"})
		assert.True(t, res.IsError)
		assert.Contains(t, res.text(), `invalid timezone "Not/AZone"`)
	})

	t.Run("calculate", func(t *testing.T) {
		res := h.callTool("calculate", map[string]any{"expression": "2 + 2"})
		assert.False(t, res.IsError)
		assert.Equal(t, "2 + 2 = 4", res.text())

		res = h.callTool("calculate", map[string]any{"expression": "10 * 5"})
		assert.Equal(t, "10 * 5 = 50", res.text())

		res = h.callTool("calculate", map[string]any{"expression": "1/0"})
		assert.True(t, res.IsError)
		assert.Contains(t, res.text(), "division by zero")

		res = h.callTool("calculate", map[string]any{"expression": "DROP TABLE"})
		assert.True(t, res.IsError)
		assert.Contains(t, res.text(), "disallowed characters")
	})

	t.Run("echo", func(t *testing.T) {
		res := h.callTool("echo", map[string]any{"message": "hi", "uppercase": true})
		assert.Equal(t, "HI", res.text())

		res = h.callTool("echo", map[string]any{"message": "hi"})
		assert.Equal(t, "hi", res.text())
	})

	t.Run("schema violations are tool errors", func(t *testing.T) {
		res := h.callTool("echo", map[string]any{})
		assert.True(t, res.IsError)
		assert.Contains(t, res.text(), "invalid arguments for echo")

		res = h.callTool("calculate", map[string]any{"expression": 42})
		assert.True(t, res.IsError)
	})

	t.Run("unknown tool is a protocol error", func(t *testing.T) {
		resp := h.rpc("tools/call", map[string]any{"name": "nope", "arguments": map[string]any{}})
		require.NotNil(t, resp.Error)
		assert.Contains(t, resp.Error.Message, "nope")
	})

	t.Run("observer sees every completed call", func(t *testing.T) {
		mu.Lock()
		defer mu.Unlock()
		assert.Contains(t, observed, "calculate:false")
		assert.Contains(t, observed, "calculate:true")
		assert.Contains(t, observed, "echo:false")
		assert.NotContains(t, observed, "nope:true")
	})
}

func TestServerNotification(t *testing.T) {
	s, err := mcpserver.NewServer("test-server")
	require.NoError(t, err)
	msg := s.MCP().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	assert.Nil(t, msg)
}
