// Package api provides the JSON response shapes shared by the HTTP surfaces
// and the command protocol.
package api

import (
	"encoding/json"
	"net/http"

	apperrors "bytepad-backend/internal/errors"
)

// Envelope is the {success, data?, error?} body of the local-process API.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CommandResponse is the result of one command.
type CommandResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody describes a failed command.
type ErrorBody struct {
	Type     string                 `json:"type"`
	Code     string                 `json:"code"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Success sends a successful envelope with optional data.
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, Envelope{Success: true, Data: data})
}

// Error sends a failed envelope with a message.
func Error(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, Envelope{Success: false, Error: message})
}

// WriteError sends err as a failed envelope using the status its type maps to.
func WriteError(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err.Error())
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	if ue, ok := apperrors.As(err); ok {
		return ue.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// CommandFailure converts err into a non-success command response.
func CommandFailure(err error) CommandResponse {
	resp := CommandResponse{Success: false, Message: err.Error()}
	if ue, ok := apperrors.As(err); ok {
		errType := ue.Type
		if errType == apperrors.ErrorTypeNotInitialized {
			errType = apperrors.ErrorTypeInternal
		}
		resp.Message = ue.Message
		resp.Error = &ErrorBody{
			Type:     string(errType),
			Code:     ue.Code,
			Details:  ue.Details,
			Metadata: ue.Metadata,
		}
		return resp
	}
	resp.Error = &ErrorBody{Type: string(apperrors.ErrorTypeInternal), Code: apperrors.CodeInternal}
	return resp
}

// WriteCommandResult sends a command response. Failures use the status of
// their error type.
func WriteCommandResult(w http.ResponseWriter, resp CommandResponse, err error) {
	if err != nil {
		writeJSON(w, StatusFor(err), CommandFailure(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
