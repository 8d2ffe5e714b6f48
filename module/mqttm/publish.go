package mqttm

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Reconnect backoff: 3s for the first 10 attempts, 60s for the next 10,
// then 600s.
const (
	BACKOFF_SHORT time.Duration = 3 * time.Second
	BACKOFF_LONG  time.Duration = 60 * time.Second
	BACKOFF_MAX   time.Duration = 600 * time.Second
	BACKOFF_STEP  int           = 10
)

// *--------------------------------------------------------------------------------------
// Publish sends payload on topic. When the publish fails and auto
// reconnect is enabled it blocks until a reconnect succeeds and retries
// exactly once.
func (m *Module) Publish(topic string, qos byte, payload []byte) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if qos > MAX_QOS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	if !m.conf.AutoReconnect && !m.client.IsConnected() {
		return ErrNotConnected
	}

	err := m.publishFn(topic, qos, payload)
	if err == nil || !m.conf.AutoReconnect {
		return err
	}

	zap.S().Warnf("Publish to %s failed, reconnecting: %v", topic, err)
	if err := m.reconnect(); err != nil {
		return err
	}
	return m.publishFn(topic, qos, payload)
}

// *--------------------------------------------------------------------------------------
func (m *Module) publishFn(topic string, qos byte, payload []byte) error {
	token := m.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(OPERATION_TIMEOUT) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, OPERATION_TIMEOUT)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	zap.S().Debugf("Published message to topic %s with QoS %d", topic, qos)
	return nil
}

// *--------------------------------------------------------------------------------------
// reconnect blocks until the client is connected again. It returns
// ErrNotConnected once Disconnect has been called, until the next Connect.
func (m *Module) reconnect() error {
	for attempt := 0; ; attempt++ {
		select {
		case <-m.done():
			return ErrNotConnected
		default:
		}

		if m.client.IsConnected() {
			return nil
		}
		err := m.connect()
		if err == nil {
			return nil
		}

		delay := backoff(attempt)
		zap.S().Warnf("Reconnect attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
		m.sleep(delay)
	}
}

func backoff(attempt int) time.Duration {
	switch {
	case attempt < BACKOFF_STEP:
		return BACKOFF_SHORT
	case attempt < 2*BACKOFF_STEP:
		return BACKOFF_LONG
	}
	return BACKOFF_MAX
}
