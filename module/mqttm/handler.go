package mqttm

import (
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// *--------------------------------------------------------------------------------------
// SetMessageHandler installs the inbound callback. It replaces any
// previous one.
func (m *Module) SetMessageHandler(fn MessageFunc) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.onMessage = fn
}

// *--------------------------------------------------------------------------------------
// messageHandler runs on paho's delivery goroutine. It queues the message
// for the inbox goroutine, started on first use and kept for the life of
// the Module.
func (m *Module) messageHandler(_ MQTT.Client, msg MQTT.Message) {
	m.drainOnce.Do(func() { go m.drain() })
	m.inbox <- inbound{topic: msg.Topic(), payload: msg.Payload()}
}

func (m *Module) drain() {
	for in := range m.inbox {
		m.dispatch(in)
	}
}

func (m *Module) dispatch(in inbound) {
	m.handlerMu.RLock()
	fn := m.onMessage
	m.handlerMu.RUnlock()

	if fn == nil {
		zap.S().Warnf("No message handler, dropped message on %s", in.topic)
		return
	}
	fn(in.topic, in.payload)
}
