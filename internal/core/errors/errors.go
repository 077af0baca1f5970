package errors

const (
	HttpInternalError      = "internal_error"
	HttpInvalidJsonError   = "invalid_json"
	HttpInvalidRequest     = "invalid_request"
	HttpNotFoundError      = "not_found"
	HttpNoNewDataError     = "no_new_data"
	HttpPersistFailedError = "persist_failed"
	HttpGatewayError       = "gateway_error"
)

// ErrorResponse is the error response body shared by every HTTP handler.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
