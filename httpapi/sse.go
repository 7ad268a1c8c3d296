package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mcp-toolserver/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// handleSSE opens a session and streams its events until the client goes
// away or the session is closed.
func (a *API) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		hlog.FromRequest(r).Error().Msg("response writer cannot flush")
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("generate session id")
		writeJSONError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	sessionID := id.String()
	logger := hlog.FromRequest(r).With().Str("session_id", sessionID).Logger()

	transport := session.NewTransport(sessionID, a.protocol, a.cfg.EventQueueSize)
	if err := a.protocol.RegisterSession(r.Context(), transport); err != nil {
		logger.Error().Err(err).Msg("register protocol session")
		writeJSONError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	a.registry.Register(sessionID, transport)
	a.metrics.setSessions(a.registry.Len())
	logger.Info().Msg("session opened")

	defer func() {
		a.registry.Unregister(sessionID)
		a.protocol.UnregisterSession(context.WithoutCancel(r.Context()), sessionID)
		_ = transport.Close()
		a.metrics.setSessions(a.registry.Len())
		logger.Info().Msg("session closed")
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(SessionIDHeader, sessionID)
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, flusher, session.EventEndpoint, []byte(endpointURL(sessionID))); err != nil {
		logger.Warn().Err(err).Msg("write endpoint event")
		return
	}
	a.stream(r.Context(), w, flusher, transport, logger)
}

func (a *API) stream(ctx context.Context, w io.Writer, flusher http.Flusher, transport *session.Transport, logger zerolog.Logger) {
	var keepAlive <-chan time.Time
	if a.cfg.KeepAliveInterval > 0 {
		ticker := a.clock.NewTicker(a.cfg.KeepAliveInterval)
		defer ticker.Stop()
		keepAlive = ticker.Chan()
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case <-transport.Done():
			return
		case ev := <-transport.Events():
			err = writeEvent(w, flusher, ev.Name, ev.Data)
		case n := <-transport.Notifications():
			var data []byte
			data, err = json.Marshal(n)
			if err == nil {
				err = writeEvent(w, flusher, session.EventMessage, data)
			}
		case <-keepAlive:
			err = writeComment(w, flusher, "ping")
		}
		if err != nil {
			logger.Warn().Err(err).Msg("stream write failed")
			return
		}
	}
}

func endpointURL(sessionID string) string {
	return messagePath + "?" + url.Values{SessionIDParam: {sessionID}}.Encode()
}

func writeEvent(w io.Writer, flusher http.Flusher, name string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("write %s event: %w", name, err)
	}
	flusher.Flush()
	return nil
}

func writeComment(w io.Writer, flusher http.Flusher, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("write comment: %w", err)
	}
	flusher.Flush()
	return nil
}
