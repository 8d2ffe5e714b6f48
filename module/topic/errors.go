package topic

import "errors"

var (
	// ErrMissingField is returned by builders when a required field is empty.
	ErrMissingField = errors.New("topic: required field is empty")

	// ErrInvalidValue is returned when a field contains characters that
	// cannot appear in a topic level (separators or MQTT wildcards).
	ErrInvalidValue = errors.New("topic: invalid field value")

	// ErrMalformedTopic is returned when an inbound topic cannot be decomposed.
	ErrMalformedTopic = errors.New("topic: malformed topic")
)
