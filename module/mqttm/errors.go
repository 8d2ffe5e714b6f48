package mqttm

import "errors"

var (
	// ErrNotConnected is returned when the client is offline and the
	// operation cannot wait for a reconnect.
	ErrNotConnected = errors.New("mqttm: not connected")

	// ErrTimeout is returned when connect or disconnect polling gives up.
	ErrTimeout = errors.New("mqttm: timed out")

	// ErrInvalidTopic is returned for empty topics and for wildcards in a
	// publish topic.
	ErrInvalidTopic = errors.New("mqttm: invalid topic")

	// ErrInvalidQoS is returned for QoS values above 2.
	ErrInvalidQoS = errors.New("mqttm: invalid qos")

	// ErrInvalidConfig is returned by New for an unusable configuration.
	ErrInvalidConfig = errors.New("mqttm: invalid config")

	// ErrPublishFailed wraps a publish token error or timeout.
	ErrPublishFailed = errors.New("mqttm: publish failed")

	// ErrSubscribeFailed wraps a subscribe token error or timeout.
	ErrSubscribeFailed = errors.New("mqttm: subscribe failed")

	// ErrUnsubscribeFailed wraps an unsubscribe token error or timeout.
	ErrUnsubscribeFailed = errors.New("mqttm: unsubscribe failed")
)
