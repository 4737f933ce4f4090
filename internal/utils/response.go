package utils

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type APIError struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ErrorBody struct {
	Error APIError `json:"error"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(message string, details interface{}) ErrorBody {
	return ErrorBody{Error: APIError{Message: message, Details: details}}
}

// WriteJSON encodes body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteError(w http.ResponseWriter, status int, message string, details interface{}) {
	WriteJSON(w, status, ErrorResponse(message, details))
}
