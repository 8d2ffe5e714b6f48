package mqttm

import (
	"fmt"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// *--------------------------------------------------------------------------------------
// Connect opens the connection and blocks until the client reports it is
// connected. A Module may connect again after Disconnect.
func (m *Module) Connect() error {
	m.closeMu.Lock()
	select {
	case <-m.closed:
		m.closed = make(chan struct{})
	default:
	}
	m.closeMu.Unlock()
	return m.connect()
}

func (m *Module) connect() error {
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", m.conf.BrokerURI, token.Error())
	}

	for i := 0; i < m.connectCycles; i++ {
		if m.client.IsConnected() {
			zap.S().Infof("Connected to MQTT broker: %s", m.conf.BrokerURI)
			return nil
		}
		m.sleep(m.pollInterval)
	}
	return fmt.Errorf("%w: connecting to %s", ErrTimeout, m.conf.BrokerURI)
}

// *--------------------------------------------------------------------------------------
// Disconnect closes the connection and blocks until the client reports it
// is offline. A publish blocked in its reconnect loop gives up.
func (m *Module) Disconnect() error {
	m.closeMu.Lock()
	select {
	case <-m.closed:
	default:
		close(m.closed)
	}
	m.closeMu.Unlock()
	m.client.Disconnect(QUIESCE_MS)

	for i := 0; i < m.connectCycles; i++ {
		if !m.client.IsConnected() {
			zap.S().Infof("Disconnected from MQTT broker: %s", m.conf.ClientID)
			return nil
		}
		m.sleep(m.pollInterval)
	}
	return fmt.Errorf("%w: disconnecting from %s", ErrTimeout, m.conf.BrokerURI)
}

// done is closed once Disconnect is called.
func (m *Module) done() <-chan struct{} {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	return m.closed
}

// IsConnected reports whether the client is online.
func (m *Module) IsConnected() bool {
	return m.client.IsConnected()
}

// *--------------------------------------------------------------------------------------
// connectHandler restores every tracked subscription after a (re)connect.
func (m *Module) connectHandler(client MQTT.Client) {
	zap.S().Infof("Connection established: %s", m.conf.ClientID)

	m.subMu.RLock()
	filters := make(map[string]byte, len(m.subs))
	for topic, qos := range m.subs {
		filters[topic] = qos
	}
	m.subMu.RUnlock()

	if len(filters) == 0 {
		return
	}
	token := client.SubscribeMultiple(filters, m.messageHandler)
	if !token.WaitTimeout(OPERATION_TIMEOUT) {
		zap.S().Errorf("Timed out restoring subscriptions: %+v", filters)
		return
	}
	if err := token.Error(); err != nil {
		zap.S().Errorf("Failed to restore subscriptions: %v", err)
		return
	}
	zap.S().Infof("Restored subscriptions: %+v", filters)
}

func (m *Module) connectionLostHandler(_ MQTT.Client, err error) {
	zap.S().Errorf("Connection lost: %v", err)
}
