// Package errs holds the domain errors shared by the directory, registry, message log and
// session manager. Callers wrap them with fmt.Errorf("...: %w", err) and match with errors.Is.
package errs

import "errors"

var (
	// ErrAlreadyExists is returned when a username is already taken.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when a username or id does not resolve.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateChat is returned when a chat between the same two users already exists.
	ErrDuplicateChat = errors.New("chat with this user already exists")
	// ErrSelfChat is returned when both sides of a chat resolve to the same user.
	ErrSelfChat = errors.New("cannot create a chat with yourself")
	// ErrChatNotFound is returned when a chat id does not resolve.
	ErrChatNotFound = errors.New("chat not found")
	// ErrNotAMember is returned when the declared sender does not belong to the chat.
	ErrNotAMember = errors.New("sender is not a member of the chat")
	// ErrMalformedPayload is returned for frames that fail strict decoding or validation.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrInvalidCredentials is returned when login fails for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("no user with these username or password")
	// ErrSenderMismatch is returned when strict sender binding is on and the frame's sender
	// differs from the authenticated connection owner.
	ErrSenderMismatch = errors.New("sender does not match the connection owner")
)

// Code returns the stable machine-readable code for err, used in error frames.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrChatNotFound):
		return "chat_not_found"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrSenderMismatch):
		return "sender_mismatch"
	case errors.Is(err, ErrDuplicateChat):
		return "duplicate_chat"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	default:
		return "internal"
	}
}
