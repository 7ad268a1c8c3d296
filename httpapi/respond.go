package httpapi

import (
	"encoding/json"
	"net/http"
)

const jsonContentType = "application/json"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeJSONError emits {"error":{"code":<status>,"message":"<reason>"}}. It is
// transport level and makes no claim to JSON-RPC framing.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"code": status, "message": msg}})
}
