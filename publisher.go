package memq

// Publisher allows publishing to a specific channel
type Publisher interface {
	Publish(channel string, message *Message) (id string, err error)
}

// PublisherFunc wraps a publishing function to use it as a Publisher
type PublisherFunc func(channel string, message *Message) (string, error)

func (f PublisherFunc) Publish(channel string, message *Message) (string, error) {
	return f(channel, message)
}

// PublisherMiddleware defines a function type that takes a Publisher and
// returns a modified Publisher. It is used to intercept publishing, for
// example to inject tracing headers.
type PublisherMiddleware func(Publisher) Publisher
