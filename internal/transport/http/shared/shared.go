// Package shared holds the response helpers every handler uses: the JSON
// envelope and the single place domain error codes map to HTTP statuses.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "fieldkey/pkg/domain-errors"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeNotFound:         http.StatusNotFound,
	dErrors.CodeAlreadyIssued:    http.StatusConflict,
	dErrors.CodeExpired:          http.StatusGone,
	dErrors.CodeInvalidToken:     http.StatusUnauthorized,
	dErrors.CodeForbidden:        http.StatusForbidden,
	dErrors.CodeRoundNotOpen:     http.StatusConflict,
	dErrors.CodeRoundInfoMissing: http.StatusConflict,

	dErrors.CodeBadRequest:   http.StatusBadRequest,
	dErrors.CodeInvalidInput: http.StatusBadRequest,
	dErrors.CodeValidation:   http.StatusBadRequest,
	dErrors.CodeUnauthorized: http.StatusUnauthorized,
	dErrors.CodeConflict:     http.StatusConflict,
	dErrors.CodeTimeout:      http.StatusGatewayTimeout,
}

// StatusOf maps a domain error to its HTTP status. Anything unmapped,
// including bare infrastructure errors, is a 500.
func StatusOf(err error) int {
	if status, ok := statusByCode[dErrors.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteError renders the error envelope for a domain error.
func WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusOf(err))
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   string(dErrors.CodeOf(err)),
		Message: dErrors.MessageOf(err),
	})
}

// WriteJSON renders a success body.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
