package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
)

// Error is the body of every non-2xx response that is not a command ack.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTP error codes. Command failures reuse the bridge's ack codes instead.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "unavailable"
)

// ackStatus maps command ack error codes to HTTP statuses. Codes not listed
// are reported as 502: the gateway or device answered, but not usefully.
var ackStatus = map[string]int{
	eltako.ErrCodeInvalidCommand:    http.StatusBadRequest,
	eltako.ErrCodeInvalidParameters: http.StatusBadRequest,
	eltako.ErrCodeNotConfigured:     http.StatusNotFound,
	eltako.ErrCodeTimeout:           http.StatusGatewayTimeout,
	eltako.ErrCodeDeviceUnreachable: http.StatusServiceUnavailable,
}

func ackHTTPStatus(ack eltako.AckMessage) int {
	if ack.Error == nil {
		return http.StatusOK
	}
	if status, ok := ackStatus[ack.Error.Code]; ok {
		return status
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // the client may already be gone
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable reports an optional dependency the bridge runs without,
// such as the database behind discovery and the command log.
func writeUnavailable(w http.ResponseWriter, what string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, what+" not available")
}
