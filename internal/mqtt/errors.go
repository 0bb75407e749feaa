package mqtt

import "errors"

var (
	// ErrNotConnected is returned when an operation needs a live broker
	// connection. A channel sink refuses installation with it.
	ErrNotConnected = errors.New("mqtt: client not connected")

	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed = errors.New("mqtt: publish failed")

	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrUnknownChannel is returned by the bridge for channels it has no
	// topic for.
	ErrUnknownChannel = errors.New("mqtt: no topic for channel")
)
