package memq

type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// AlreadySubscribed is returned by Subscribe when a handler is already
	// registered on the broker.
	AlreadySubscribed = Error("already subscribed")
	// ErrClosed is returned by operations invoked after the broker has been
	// closed.
	ErrClosed = Error("broker is closed")
)
