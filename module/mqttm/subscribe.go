package mqttm

import (
	"fmt"

	"go.uber.org/zap"
)

// *--------------------------------------------------------------------------------------
// Subscribe subscribes to filter. The subscription is restored after every
// reconnect until Unsubscribe is called.
func (m *Module) Subscribe(filter string, qos byte) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if qos > MAX_QOS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	if !m.client.IsConnected() {
		return ErrNotConnected
	}

	m.subMu.Lock()
	m.subs[filter] = qos
	m.subMu.Unlock()

	token := m.client.Subscribe(filter, qos, m.messageHandler)
	if !token.WaitTimeout(OPERATION_TIMEOUT) {
		m.forget(filter)
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, filter, OPERATION_TIMEOUT)
	}
	if err := token.Error(); err != nil {
		m.forget(filter)
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, filter, err)
	}
	zap.S().Infof("Subscribed to %s with QoS %d", filter, qos)
	return nil
}

// *--------------------------------------------------------------------------------------
// Unsubscribe stops the subscription to filter.
func (m *Module) Unsubscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if !m.client.IsConnected() {
		return ErrNotConnected
	}

	m.forget(filter)
	token := m.client.Unsubscribe(filter)
	if !token.WaitTimeout(OPERATION_TIMEOUT) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrUnsubscribeFailed, filter, OPERATION_TIMEOUT)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsubscribeFailed, filter, err)
	}
	return nil
}

// Subscriptions returns the tracked filters and their QoS.
func (m *Module) Subscriptions() map[string]byte {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	out := make(map[string]byte, len(m.subs))
	for k, v := range m.subs {
		out[k] = v
	}
	return out
}

func (m *Module) forget(filter string) {
	m.subMu.Lock()
	delete(m.subs, filter)
	m.subMu.Unlock()
}
