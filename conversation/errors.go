package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownConversation is returned for events on a key with no live record.
	ErrUnknownConversation = errors.New("conversation: unknown or cleared conversation")
	// ErrWrongPhase is returned when an event does not fit the record's phase.
	ErrWrongPhase = errors.New("conversation: event does not match conversation phase")
	// ErrNoDestination is wrapped in a DispatchError when no option chose a chat.
	ErrNoDestination = errors.New("conversation: no destination chat selected")
	// ErrMissingProblemText marks a classification rule without text.
	ErrMissingProblemText = errors.New("problem text is required")
)

// DispatchError reports a report that could not be delivered. The
// conversation is kept so the user can resend.
type DispatchError struct {
	ConversationID string
	Key            Key
	Destination    int64
	Err            error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch report %s to chat %d: %v", e.ConversationID, e.Destination, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
