// Package httpapi serves the tool server over HTTP: an SSE stream per client
// on /sse, inbound messages on /message, plus /health and /metrics.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"mcp-toolserver/session"
	"mcp-toolserver/shared"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const (
	SessionIDHeader = "X-Session-ID"
	SessionIDParam  = "sessionId"

	ssePath     = "/sse"
	messagePath = "/message"
)

// ProtocolServer decodes protocol messages and tracks the sessions it has
// been told about. *server.MCPServer satisfies it.
type ProtocolServer interface {
	session.MessageHandler
	RegisterSession(ctx context.Context, session server.ClientSession) error
	UnregisterSession(ctx context.Context, sessionID string)
}

type Options struct {
	Config   shared.Config
	Protocol ProtocolServer
	Registry *session.Registry
	Metrics  *Metrics
	Clock    clockwork.Clock
}

type API struct {
	chi.Router

	cfg      shared.Config
	protocol ProtocolServer
	registry *session.Registry
	router   *session.Router
	metrics  *Metrics
	clock    clockwork.Clock
}

func New(o Options) *API {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Registry == nil {
		o.Registry = session.NewRegistry(o.Clock)
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics()
	}
	a := &API{
		Router:   chi.NewRouter(),
		cfg:      o.Config,
		protocol: o.Protocol,
		registry: o.Registry,
		router:   session.NewRouter(o.Registry, o.Config.SingleTenant),
		metrics:  o.Metrics,
		clock:    o.Clock,
	}
	a.setup()
	return a
}

func (a *API) setup() {
	a.Use(middleware.RequestID)
	a.Use(middleware.RealIP)
	a.Use(hlog.NewHandler(log.Logger))
	a.Use(requestIDLogger)
	a.Use(hlog.AccessHandler(accessLog))
	a.Use(middleware.Recoverer)
	a.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", authorizationHeader, "Content-Type", SessionIDHeader},
		ExposedHeaders: []string{SessionIDHeader},
		MaxAge:         600,
	}))

	a.Get("/health", a.handleHealth)
	a.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	a.Group(func(r chi.Router) {
		if a.cfg.RequireAuth {
			r.Use(BearerAuth(a.cfg.APIKey, a.metrics))
		}
		r.Get(ssePath, a.handleSSE)
		r.Post(messagePath, a.handleMessage)
	})
}

// Registry exposes the live sessions.
func (a *API) Registry() *session.Registry { return a.registry }

// CloseSessions ends every open stream. Streams never go idle on their own,
// so this must run before http.Server.Shutdown can return.
func (a *API) CloseSessions() {
	for _, e := range a.registry.Entries() {
		if c, ok := e.Handle.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": a.clock.Now().UTC().Format(time.RFC3339),
		"sessions":  a.registry.Len(),
	})
}

func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	evt := hlog.FromRequest(r).Info()
	if status >= http.StatusInternalServerError {
		evt = hlog.FromRequest(r).Error()
	}
	evt.Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
