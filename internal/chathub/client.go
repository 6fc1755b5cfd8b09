package chathub

// Client is one live connection of an authenticated user. It abstracts the underlying
// transport so the hub can manage sessions without knowing about WebSockets.
type Client interface {
	// GetUserID returns the id of the user the connection was authenticated as.
	GetUserID() uint
	// GetUsername returns the username bound to the connection at authentication.
	GetUsername() string
	// GetConnID returns an identifier unique to this connection.
	GetConnID() string

	// Send queues a frame for the client. It never blocks and returns false when the
	// connection is closed or cannot keep up.
	Send(frame []byte) bool

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the connection down. It is safe to call more than once.
	Close()
}
