package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
)

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrQueueFull       = errors.New("event queue full")
)

const (
	EventEndpoint = "endpoint"
	EventMessage  = "message"
)

// MessageHandler decodes and answers protocol messages. *server.MCPServer
// satisfies it.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage
	WithContext(ctx context.Context, session server.ClientSession) context.Context
}

// Event is one server-sent event waiting to be written to the stream.
type Event struct {
	Name string
	Data []byte
}

// Transport is the per-stream handle. Inbound messages are decoded by the
// MessageHandler and the replies queued as events for the stream writer.
type Transport struct {
	id      string
	handler MessageHandler

	events        chan Event
	notifications chan mcp.JSONRPCNotification
	done          chan struct{}
	closeOnce     sync.Once
	initialized   atomic.Bool
}

var (
	_ Handle               = (*Transport)(nil)
	_ server.ClientSession = (*Transport)(nil)
)

func NewTransport(id string, handler MessageHandler, queueSize int) *Transport {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Transport{
		id:            id,
		handler:       handler,
		events:        make(chan Event, queueSize),
		notifications: make(chan mcp.JSONRPCNotification, queueSize),
		done:          make(chan struct{}),
	}
}

func (t *Transport) SessionID() string { return t.id }

func (t *Transport) Initialize() { t.initialized.Store(true) }

func (t *Transport) Initialized() bool { return t.initialized.Load() }

// NotificationChannel is written by the MCP server for broadcast
// notifications; the stream drains it through Notifications.
func (t *Transport) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return t.notifications
}

func (t *Transport) Notifications() <-chan mcp.JSONRPCNotification { return t.notifications }

func (t *Transport) Events() <-chan Event { return t.events }

func (t *Transport) Done() <-chan struct{} { return t.done }

// Deliver hands message to the protocol handler and queues the reply, if
// any, on the stream. Notifications produce no reply.
func (t *Transport) Deliver(ctx context.Context, message json.RawMessage) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	resp := t.handler.HandleMessage(t.handler.WithContext(ctx, t), message)
	if resp == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response for session %s: %w", t.id, err)
	}
	return t.Send(Event{Name: EventMessage, Data: data})
}

// Send queues ev without blocking.
func (t *Transport) Send(ev Event) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}
	select {
	case t.events <- ev:
		return nil
	default:
		log.Warn().Str("session_id", t.id).Str("event", ev.Name).Msg("event queue full, dropping event")
		return ErrQueueFull
	}
}

// Close ends the stream. It is safe to call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}
