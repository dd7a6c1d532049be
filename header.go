package memq

import "strconv"

const (
	// HdrCreatedAt is the header key holding the unix timestamp of the
	// moment the message was published.
	HdrCreatedAt = "Created-At"
	// HdrCorrelationID is the unique identifier used to track and correlate
	// messages as they flow through a system
	HdrCorrelationID = "Correlation-Id"
	// HdrFailureReason holds the error text of the last failed delivery
	// attempt. It is set by the broker when a message is dead-lettered.
	HdrFailureReason = "Failure-Reason"
	// HdrIdempotencyKey is the fallback header consulted by the idempotency
	// middleware when Message.ID is empty.
	HdrIdempotencyKey = "Idempotency-Key"
	// HdrReplyTo is the header key for the reply channel.
	HdrReplyTo    = "Reply-To"
	HdrReplyMsgID = "Reply-Message-Id"
)

// Header represents a set of key-value pairs
type Header map[string]string

// Get retrieves the value associated with the provided key from the header.
// Returns an empty string if the key does not exist.
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[key]
}

// Set assigns the provided value to the provided key in the header.
func (h Header) Set(key, value string) {
	h[key] = value
}

// SetCreatedAt sets the creation timestamp (unix time) in the header using a predefined key.
func (h Header) SetCreatedAt(timestamp int64) {
	h.Set(HdrCreatedAt, strconv.FormatInt(timestamp, 10))
}

// GetCreatedAt retrieves the creation timestamp from the header.
// Returns zero if the creation timestamp is not set.
func (h Header) GetCreatedAt() int64 {
	v := h.Get(HdrCreatedAt)
	if v == "" {
		return 0
	}
	timestamp, _ := strconv.ParseInt(v, 10, 64)
	return timestamp
}

// SetCorrelationID sets the correlation id in the header using a predefined key.
func (h Header) SetCorrelationID(id string) {
	h.Set(HdrCorrelationID, id)
}

// GetCorrelationID retrieves the correlation id value from the header.
// Returns an empty string if the correlation id is not set.
func (h Header) GetCorrelationID() string {
	return h.Get(HdrCorrelationID)
}

// SetFailureReason sets the last failure reason in the header using a predefined key.
func (h Header) SetFailureReason(reason string) {
	h.Set(HdrFailureReason, reason)
}

// GetFailureReason retrieves the last failure reason from the header.
// Returns an empty string if no failure has been recorded.
func (h Header) GetFailureReason() string {
	return h.Get(HdrFailureReason)
}

// SetIdempotencyKey sets the idempotency key in the header using a predefined key.
func (h Header) SetIdempotencyKey(key string) {
	h.Set(HdrIdempotencyKey, key)
}

// GetIdempotencyKey retrieves the idempotency key from the header.
// Returns an empty string if the idempotency key is not set.
func (h Header) GetIdempotencyKey() string {
	return h.Get(HdrIdempotencyKey)
}

// SetReplyChannel sets the reply channel in the header using a predefined key.
func (h Header) SetReplyChannel(channel string) {
	h.Set(HdrReplyTo, channel)
}

// GetReplyChannel retrieves the reply channel value from the header.
// Returns an empty string if the reply channel is not set.
func (h Header) GetReplyChannel() string {
	return h.Get(HdrReplyTo)
}

// SetReplyMessageID sets the reply message id in the header using a predefined key.
func (h Header) SetReplyMessageID(id string) {
	h.Set(HdrReplyMsgID, id)
}

// GetReplyMessageID retrieves the reply message id value from the header.
// Returns an empty string if the reply message id is not set.
func (h Header) GetReplyMessageID() string {
	return h.Get(HdrReplyMsgID)
}
