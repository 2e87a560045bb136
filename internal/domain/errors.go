package domain

import "errors"

// Sentinel errors for the relay. Store implementations wrap their driver
// errors so that callers can match them with errors.Is.
var (
	// ErrStoreUnavailable is returned when the message store cannot be
	// reached or fails to complete an operation.
	ErrStoreUnavailable = errors.New("message store unavailable")

	// ErrMalformedFrame is returned when an inbound frame cannot be decoded
	// into an InboundMessage.
	ErrMalformedFrame = errors.New("malformed inbound frame")

	// ErrSendFailure is returned when a message cannot be queued for a
	// connection because it is closed or its buffer is full.
	ErrSendFailure = errors.New("connection send failure")
)
