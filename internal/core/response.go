package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"payrelay/internal/types"
)

// StatusResponse is the wire envelope for every ingress response. External
// webhook senders key their retry behavior off the HTTP status code; the body
// is a small fixed-shape JSON object.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Success is the canonical acknowledgement body.
var Success = StatusResponse{Status: "success"}

// JSON writes a JSON response with the given status code and data.
// If marshalling fails, it falls back to a plain 500 error envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		// Best-effort write; if this also fails there is nothing more to do.
		_ = json.NewEncoder(w).Encode(StatusResponse{
			Status:  "error",
			Message: "failed to marshal response",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes an error response to the client. It inspects the error chain:
//   - If the error is (or wraps) a *types.AppError, its Code determines the
//     HTTP status and its Message becomes the envelope message.
//   - Any other error returns a 500 with a generic message.
//
// Wrapped internal error details are never exposed to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		JSON(w, r, appErr.HTTPStatus(), StatusResponse{
			Status:  "error",
			Message: appErr.Message,
		})
		return
	}

	JSON(w, r, http.StatusInternalServerError, StatusResponse{
		Status:  "error",
		Message: "an unexpected error occurred",
	})
}
