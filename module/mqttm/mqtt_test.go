package mqttm

import (
	"errors"
	"sync"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// fakeClient is an in-memory paho client.
type fakeClient struct {
	mu          sync.Mutex
	connected   bool
	stayOffline bool
	connectErrs []error
	publishErrs []error
	subErr      error
	connects    int
	published   []string
	subscribed  map[string]byte
	restored    map[string]byte
	onConnect   func(MQTT.Client)
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscribed: make(map[string]byte)}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() MQTT.Token {
	c.mu.Lock()
	c.connects++
	if len(c.connectErrs) > 0 {
		err := c.connectErrs[0]
		c.connectErrs = c.connectErrs[1:]
		if err != nil {
			c.mu.Unlock()
			return &fakeToken{err: err}
		}
	}
	c.connected = !c.stayOffline
	connected, onConnect := c.connected, c.onConnect
	c.mu.Unlock()

	if connected && onConnect != nil {
		onConnect(c)
	}
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, _ interface{}) MQTT.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, topic)
	if len(c.publishErrs) > 0 {
		err := c.publishErrs[0]
		c.publishErrs = c.publishErrs[1:]
		if err != nil {
			c.connected = false
			return &fakeToken{err: err}
		}
	}
	if !c.connected {
		return &fakeToken{err: errors.New("not Connected")}
	}
	return &fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, _ MQTT.MessageHandler) MQTT.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return &fakeToken{err: c.subErr}
	}
	c.subscribed[topic] = qos
	return &fakeToken{}
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, _ MQTT.MessageHandler) MQTT.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restored = filters
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) MQTT.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subscribed, t)
	}
	return &fakeToken{}
}

func (c *fakeClient) AddRoute(string, MQTT.MessageHandler) {}

func (c *fakeClient) OptionsReader() MQTT.ClientOptionsReader { return MQTT.ClientOptionsReader{} }

func newTestModule(conf Config, client *fakeClient) (*Module, *[]time.Duration) {
	if conf.BrokerURI == "" {
		conf.BrokerURI = "tcp://org.messaging.example.com:1883"
	}
	m := newModule(conf)
	m.client = client
	m.connectCycles = 3
	sleeps := &[]time.Duration{}
	m.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	client.onConnect = m.connectHandler
	return m, sleeps
}

func TestConnect(t *testing.T) {
	client := newFakeClient()
	m, sleeps := newTestModule(Config{}, client)

	require.NoError(t, m.Connect())
	assert.True(t, m.IsConnected())
	assert.Empty(t, *sleeps)
}

func TestConnectTimeout(t *testing.T) {
	client := newFakeClient()
	client.stayOffline = true
	m, sleeps := newTestModule(Config{}, client)

	err := m.Connect()
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []time.Duration{POLL_INTERVAL, POLL_INTERVAL, POLL_INTERVAL}, *sleeps)
}

func TestConnectError(t *testing.T) {
	client := newFakeClient()
	client.connectErrs = []error{errors.New("refused")}
	m, _ := newTestModule(Config{}, client)

	err := m.Connect()
	assert.ErrorContains(t, err, "refused")
	assert.False(t, m.IsConnected())
}

func TestPublishValidation(t *testing.T) {
	m, _ := newTestModule(Config{}, newFakeClient())

	assert.ErrorIs(t, m.Publish("", 0, nil), ErrInvalidTopic)
	assert.ErrorIs(t, m.Publish("iot-2/evt/+/fmt/json", 0, nil), ErrInvalidTopic)
	assert.ErrorIs(t, m.Publish("iot-2/evt/status/fmt/json", 3, nil), ErrInvalidQoS)
	assert.ErrorIs(t, m.Publish("iot-2/evt/status/fmt/json", 0, nil), ErrNotConnected)
}

func TestPublishWithoutAutoReconnect(t *testing.T) {
	client := newFakeClient()
	client.publishErrs = []error{errors.New("broken pipe")}
	m, sleeps := newTestModule(Config{}, client)
	require.NoError(t, m.Connect())

	err := m.Publish("iot-2/evt/status/fmt/json", 1, []byte("{}"))
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Len(t, client.published, 1)
	assert.Empty(t, *sleeps)
}

func TestPublishRetriesOnceAfterReconnect(t *testing.T) {
	client := newFakeClient()
	m, sleeps := newTestModule(Config{AutoReconnect: true}, client)
	require.NoError(t, m.Connect())

	refused := errors.New("refused")
	client.publishErrs = []error{errors.New("broken pipe")}
	for i := 0; i < 12; i++ {
		client.connectErrs = append(client.connectErrs, refused)
	}

	require.NoError(t, m.Publish("iot-2/evt/status/fmt/json", 1, []byte("{}")))
	assert.Len(t, client.published, 2)

	var want []time.Duration
	for i := 0; i < 10; i++ {
		want = append(want, BACKOFF_SHORT)
	}
	want = append(want, BACKOFF_LONG, BACKOFF_LONG)
	assert.Equal(t, want, *sleeps)
}

func TestPublishRetryFailsOnce(t *testing.T) {
	client := newFakeClient()
	m, _ := newTestModule(Config{AutoReconnect: true}, client)
	require.NoError(t, m.Connect())

	client.publishErrs = []error{errors.New("broken pipe"), errors.New("still broken")}
	err := m.Publish("iot-2/evt/status/fmt/json", 1, []byte("{}"))
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.ErrorContains(t, err, "still broken")
	assert.Len(t, client.published, 2)
}

func TestPublishGivesUpAfterDisconnect(t *testing.T) {
	client := newFakeClient()
	m, _ := newTestModule(Config{AutoReconnect: true}, client)
	require.NoError(t, m.Connect())
	require.NoError(t, m.Disconnect())

	err := m.Publish("iot-2/evt/status/fmt/json", 1, []byte("{}"))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, 1, client.connects)
}

func TestPublishRetriesAfterReconnectingDisconnectedModule(t *testing.T) {
	client := newFakeClient()
	m, _ := newTestModule(Config{AutoReconnect: true}, client)
	require.NoError(t, m.Connect())
	require.NoError(t, m.Disconnect())
	require.NoError(t, m.Connect())

	client.publishErrs = []error{errors.New("connection reset")}
	require.NoError(t, m.Publish("iot-2/evt/status/fmt/json", 1, []byte("{}")))
	assert.Equal(t, 3, client.connects)
	assert.Len(t, client.published, 2)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, BACKOFF_SHORT, backoff(0))
	assert.Equal(t, BACKOFF_SHORT, backoff(9))
	assert.Equal(t, BACKOFF_LONG, backoff(10))
	assert.Equal(t, BACKOFF_LONG, backoff(19))
	assert.Equal(t, BACKOFF_MAX, backoff(20))
	assert.Equal(t, BACKOFF_MAX, backoff(500))
}

func TestSubscriptionsRestoredOnReconnect(t *testing.T) {
	client := newFakeClient()
	m, _ := newTestModule(Config{}, client)

	assert.ErrorIs(t, m.Subscribe("iot-2/cmd/+/fmt/+", 1), ErrNotConnected)
	require.NoError(t, m.Connect())
	assert.Nil(t, client.restored)

	require.NoError(t, m.Subscribe("iot-2/cmd/+/fmt/+", 1))
	require.NoError(t, m.Subscribe("iotdm-1/#", 1))
	assert.ErrorIs(t, m.Subscribe("", 0), ErrInvalidTopic)
	assert.ErrorIs(t, m.Subscribe("iotdm-1/#", 5), ErrInvalidQoS)

	require.NoError(t, m.Unsubscribe("iot-2/cmd/+/fmt/+"))
	assert.Equal(t, map[string]byte{"iotdm-1/#": 1}, m.Subscriptions())

	// Connection drops and comes back.
	client.Disconnect(0)
	require.NoError(t, m.Connect())
	assert.Equal(t, map[string]byte{"iotdm-1/#": 1}, client.restored)
}

func TestSubscribeFailureIsNotTracked(t *testing.T) {
	client := newFakeClient()
	m, _ := newTestModule(Config{}, client)
	require.NoError(t, m.Connect())

	client.subErr = errors.New("not authorized")
	err := m.Subscribe("iot-2/type/+/id/+/evt/+/fmt/+", 0)
	assert.ErrorIs(t, err, ErrSubscribeFailed)
	assert.Empty(t, m.Subscriptions())
}

func TestMessageHandler(t *testing.T) {
	m, _ := newTestModule(Config{}, newFakeClient())

	// No handler installed yet.
	assert.NotPanics(t, func() {
		m.dispatch(inbound{topic: "iot-2/cmd/restart/fmt/json"})
	})

	var mu sync.Mutex
	var got []string
	m.SetMessageHandler(func(topic string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, topic+" "+string(payload))
	})
	m.messageHandler(nil, fakeMessage{topic: "iot-2/cmd/restart/fmt/json", payload: []byte("{}")})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"iot-2/cmd/restart/fmt/json {}"}, got)
}

func TestMessagesKeepArrivalOrder(t *testing.T) {
	m, _ := newTestModule(Config{}, newFakeClient())

	var mu sync.Mutex
	var got []string
	release := make(chan struct{})
	m.SetMessageHandler(func(topic string, _ []byte) {
		// The first message is slow; the second must still wait for it.
		if topic == "iotdm-1/observe" {
			<-release
		}
		mu.Lock()
		defer mu.Unlock()
		got = append(got, topic)
	})

	// paho's delivery goroutine is not held up by a slow handler.
	m.messageHandler(nil, fakeMessage{topic: "iotdm-1/observe"})
	m.messageHandler(nil, fakeMessage{topic: "iotdm-1/cancel"})
	close(release)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"iotdm-1/observe", "iotdm-1/cancel"}, got)
}

func TestDisconnect(t *testing.T) {
	client := newFakeClient()
	m, _ := newTestModule(Config{}, client)
	require.NoError(t, m.Connect())

	require.NoError(t, m.Disconnect())
	assert.False(t, m.IsConnected())
	// A second call is harmless.
	require.NoError(t, m.Disconnect())
}

func TestNew(t *testing.T) {
	_, err := New(Config{ClientID: "d:org:type:id"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{BrokerURI: "tcp://localhost:1883"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{BrokerURI: "ssl://localhost:8883", ClientID: "d:org:type:id", RootCA: "/nonexistent/ca.pem"})
	assert.ErrorContains(t, err, "CA file")

	m, err := New(Config{BrokerURI: "tcp://localhost:1883", ClientID: "d:org:type:id", Username: "use-token-auth", Password: "secret"})
	require.NoError(t, err)
	assert.False(t, m.IsConnected())
}
