package chat

import (
	"errors"
	"fmt"

	"github.com/coder/websocket"
)

// ErrNoSession is returned when an operation requires a resolved user id
// and the session has not started.
var ErrNoSession = errors.New("chat: session not started")

// CloseError records an abnormal websocket closure. A normal closure
// (status 1000) never produces one.
type CloseError struct {
	Status websocket.StatusCode
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("chat: connection closed (%d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("chat: connection closed (%d)", e.Status)
}
