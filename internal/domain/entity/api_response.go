package entity

// Error codes used in APIResponse.Error
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotAuthorized = "NOT_AUTHORIZED"
	ErrCodeConflict      = "SYNC_IN_PROGRESS"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeBadGateway    = "REMOTE_ERROR"
	ErrCodeUnavailable   = "SERVICE_UNAVAILABLE"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewSuccessResponse(data interface{}, message string) *APIResponse {
	return &APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(code string, message string) *APIResponse {
	return &APIResponse{
		Success: false,
		Message: message,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithData is an error envelope that still carries a payload,
// e.g. the summary of a failed sync run.
func NewErrorResponseWithData(code string, message string, data interface{}) *APIResponse {
	resp := NewErrorResponse(code, message)
	resp.Data = data
	return resp
}
