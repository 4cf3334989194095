package chessdto

// Error codes carried in ERROR messages and HTTP error bodies.
const (
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
	CodeIllegalMove  = "illegal_move"
	CodeGameOver     = "game_over"
	CodeForbidden    = "forbidden"
	CodeBadRequest   = "bad_request"
	CodeConflict     = "conflict"
	CodeInternal     = "internal"
)

// DomainError is an error meant for the client. Message is already rendered
// for display; Retryable marks transient failures (store conflicts, timeouts).
type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess service error"
}
