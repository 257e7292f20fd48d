package chat

import (
	"errors"
	"time"
)

var (
	ErrNotAuthor         = errors.New("only the sender can modify a message")
	ErrEditWindowExpired = errors.New("message is older than the edit window")
	ErrNotFound          = errors.New("message not found")
	ErrNotConfirmed      = errors.New("message is not confirmed by the store")
	ErrEmptyContent      = errors.New("message content is empty")
	ErrClosed            = errors.New("conversation is closed")
	ErrMalformedEvent    = errors.New("malformed event")
)

// EditWindow is how long after sending a message its author may edit or delete it.
const EditWindow = 15 * time.Minute

// CanModify checks that userID may edit or delete m at now. A window of zero means EditWindow.
func CanModify(m Message, userID string, now time.Time, window time.Duration) error {
	if window <= 0 {
		window = EditWindow
	}
	if m.SenderID != userID {
		return ErrNotAuthor
	}
	if now.Sub(m.CreatedAt) > window {
		return ErrEditWindowExpired
	}
	return nil
}
