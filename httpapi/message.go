package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"mcp-toolserver/session"

	"github.com/rs/zerolog/hlog"
)

type acceptedResponse struct {
	Status    string `json:"status"`
	Delivered bool   `json:"delivered"`
}

// handleMessage routes one posted protocol message to a session. A
// delivered message is answered 202 and its reply goes out on the stream.
func (a *API) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get(SessionIDParam)
	if sessionID == "" {
		sessionID = r.Header.Get(SessionIDHeader)
	}
	logger := hlog.FromRequest(r).With().Str("session_id", sessionID).Logger()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.cfg.MaxMessageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn().Int64("limit", tooLarge.Limit).Msg("message body too large")
			writeJSONError(w, http.StatusRequestEntityTooLarge, "message body too large")
			return
		}
		logger.Error().Err(err).Msg("read message body")
		writeJSONError(w, http.StatusInternalServerError, "failed to read message body")
		return
	}
	if !json.Valid(body) {
		logger.Error().Msg("message body is not valid JSON")
		writeJSONError(w, http.StatusInternalServerError, "message body is not valid JSON")
		return
	}

	handle, outcome := a.router.Route(sessionID)
	a.metrics.routed(outcome.String())

	switch outcome {
	case session.OutcomeRejected:
		logger.Warn().Int("sessions", a.registry.Len()).Msg("message without session id rejected")
		writeJSONError(w, http.StatusBadRequest, "sessionId is required")
		return
	case session.OutcomeUndelivered:
		logger.Debug().Msg("no session to deliver to")
		writeJSON(w, http.StatusOK, acceptedResponse{Status: "accepted"})
		return
	case session.OutcomeFallback:
		logger.Debug().Str("target", handle.SessionID()).Msg("delivering to most recent session")
	}

	err = handle.Deliver(r.Context(), body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", Delivered: true})
	case errors.Is(err, session.ErrTransportClosed):
		logger.Info().Str("target", handle.SessionID()).Msg("session closed before delivery")
		writeJSON(w, http.StatusOK, acceptedResponse{Status: "accepted"})
	case errors.Is(err, session.ErrQueueFull):
		writeJSONError(w, http.StatusServiceUnavailable, "session is not keeping up")
	default:
		logger.Error().Err(err).Str("target", handle.SessionID()).Msg("deliver message")
		writeJSONError(w, http.StatusInternalServerError, "failed to deliver message")
	}
}
