package hub

// Error codes for room-level errors.
const (
	ErrCodeRoomNotFound    = "room_not_found"
	ErrCodeMessageRequired = "message_required"
	ErrCodeSenderRequired  = "sender_required"
	ErrCodePersistFailed   = "persist_failed"
	ErrCodeDeleteFailed    = "delete_failed"
)

// Error wraps a code and a human-readable message. The message is what a
// connected client sees in its error frame.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func hubError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}
