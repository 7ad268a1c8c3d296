package httpapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mcp-toolserver/httpapi"
	mcpserver "mcp-toolserver/mcp-server"
	"mcp-toolserver/session"
	"mcp-toolserver/shared"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

var testStart = time.Date(2024, time.March, 10, 15, 4, 5, 0, time.UTC)

type testEnv struct {
	api      *httpapi.API
	srv      *httptest.Server
	clock    clockwork.FakeClock
	registry *session.Registry
	metrics  *httpapi.Metrics
}

func testConfig() shared.Config {
	return shared.Config{
		Port:               3000,
		APIKey:             testAPIKey,
		RequireAuth:        true,
		KeepAliveInterval:  30 * time.Second,
		MaxMessageBytes:    1 << 16,
		EventQueueSize:     16,
		CORSAllowedOrigins: []string{"*"},
		ServerName:         "test-server",
	}
}

func newTestEnv(t *testing.T, mutate ...func(*shared.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	clock := clockwork.NewFakeClockAt(testStart)
	metrics := httpapi.NewMetrics()
	tools, err := mcpserver.NewServer(cfg.ServerName,
		mcpserver.WithClock(clock),
		mcpserver.WithToolObserver(metrics.ObserveToolCall),
	)
	require.NoError(t, err)

	registry := session.NewRegistry(clock)
	api := httpapi.New(httpapi.Options{
		Config:   cfg,
		Protocol: tools.MCP(),
		Registry: registry,
		Metrics:  metrics,
		Clock:    clock,
	})
	srv := httptest.NewServer(api)
	t.Cleanup(func() {
		api.CloseSessions()
		srv.Close()
	})
	return &testEnv{api: api, srv: srv, clock: clock, registry: registry, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type sseEvent struct {
	name    string
	data    string
	comment string
}

// sseStream reads frames from an open /sse response on a goroutine.
type sseStream struct {
	resp   *http.Response
	events chan sseEvent
}

func openStream(t *testing.T, e *testEnv, token string) *sseStream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+"/sse", nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s := &sseStream{resp: resp, events: make(chan sseEvent, 16)}
	var once sync.Once
	t.Cleanup(func() {
		once.Do(cancel)
		resp.Body.Close()
	})
	go s.read()
	return s
}

func (s *sseStream) read() {
	defer close(s.events)
	scanner := bufio.NewScanner(s.resp.Body)
	var ev sseEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			s.events <- ev
			ev = sseEvent{}
		case strings.HasPrefix(line, ":"):
			ev.comment = strings.TrimSpace(strings.TrimPrefix(line, ":"))
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func (s *sseStream) next(t *testing.T) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-s.events:
		require.True(t, ok, "stream ended")
		return ev
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for event")
		return sseEvent{}
	}
}

func (s *sseStream) waitClosed(t *testing.T) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-s.events:
			if !ok {
				return
			}
		case <-deadline:
			require.FailNow(t, "stream still open")
		}
	}
}
