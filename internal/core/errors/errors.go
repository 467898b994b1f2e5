package errors

const (
	HttpInternalError         = "internal_error"
	HttpInvalidJsonError      = "invalid_json"
	HttpInvalidRecordError    = "invalid_record"
	HttpSchemaValidationError = "schema_validation_failed"
	HttpInvalidQueryError     = "invalid_query"
	HttpNotFoundError         = "not_found"
	HttpUnavailableError      = "unavailable"
)

// ErrorResponse is the error response body for every API error.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
