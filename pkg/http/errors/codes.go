package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest    = "invalid_request"
	ErrCodeInvalidDifficulty = "invalid_difficulty"
	ErrCodeUnknownAction     = "unknown_action"

	// Session errors
	ErrCodeSessionNotFound    = "session_not_found"
	ErrCodeSessionUnavailable = "session_unavailable"

	// Game flow errors
	ErrCodeBusy              = "busy"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeNoNarration       = "no_narration"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeRateLimited        = "rate_limited"
)
