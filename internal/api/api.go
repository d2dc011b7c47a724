package api

import "time"

type APIResponse[T any] struct {
	Data      T             `json:"data,omitempty"`
	Error     ErrorResponse `json:"error"`
	Status    int           `json:"status,omitempty"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version"`
}

type ErrorResponse struct {
	Message          string `json:"message"`
	DetailedResponse string `json:"details,omitempty"`
}

const (
	MsgInvalidRequest   = "Invalid request"
	MsgNotTracked       = "Packet hash is not tracked"
	MsgInternalError    = "An internal error occurred"
	MsgTrackingDisabled = "Tracking control is disabled"
	MsgAuthRequired     = "Authorization header required"
	MsgUnauthorized     = "Unauthorized"
)

func NewErrorResponseWithMessage(message string) APIResponse[interface{}] {
	return APIResponse[interface{}]{
		Error: ErrorResponse{
			Message: message,
		},
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
	}
}

func NewErrorResponseWithDetails(message, details string) APIResponse[interface{}] {
	resp := NewErrorResponseWithMessage(message)
	resp.Error.DetailedResponse = details
	return resp
}

func NewSuccessResponse[T any](code int, data T) APIResponse[T] {
	return APIResponse[T]{
		Status:    code,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
	}
}
