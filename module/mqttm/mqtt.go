package mqttm

import (
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

const (
	RECONNECT_INTERVAL_SEC time.Duration = 5000 * time.Millisecond
	KEEP_ALIVE_SEC         time.Duration = 60000 * time.Millisecond

	DEFAULT_QOS byte = 0
	MAX_QOS     byte = 2

	// Connect and Disconnect poll the connected flag this often, this
	// many times.
	POLL_INTERVAL  time.Duration = 100 * time.Millisecond
	CONNECT_CYCLES int           = 100

	OPERATION_TIMEOUT time.Duration = 10 * time.Second
	QUIESCE_MS        uint          = 250

	// Inbound messages waiting for the handler. paho's delivery blocks
	// while the inbox is full.
	INBOX_SIZE int = 64
)

type (
	// Config holds the MQTT connection settings.
	Config struct {
		BrokerURI          string        `json:"broker_uri" yaml:"brokerUri"`
		ClientID           string        `json:"client_id" yaml:"clientId"`
		Username           string        `json:"username" yaml:"username"`
		Password           string        `json:"password" yaml:"password"`
		RootCA             string        `json:"root_ca" yaml:"caFile"`
		PrivateKey         string        `json:"key" yaml:"keyFile"`
		ClientCert         string        `json:"cert" yaml:"certFile"`
		ValidateServerCert bool          `json:"validate_server_cert" yaml:"validateServerCert"`
		KeepAlive          time.Duration `json:"keep_alive" yaml:"keepAlive"`
		CleanSession       bool          `json:"clean_session" yaml:"cleanSession"`
		AutoReconnect      bool          `json:"auto_reconnect" yaml:"autoReconnect"`
	}

	// MessageFunc receives every inbound message, one at a time and in
	// arrival order, on the Module's inbox goroutine.
	MessageFunc func(topic string, payload []byte)

	inbound struct {
		topic   string
		payload []byte
	}

	// Module wraps a paho client with blocking connect, publish retry and
	// subscription restore.
	Module struct {
		conf   Config
		client MQTT.Client

		subMu sync.RWMutex
		subs  map[string]byte

		handlerMu sync.RWMutex
		onMessage MessageFunc
		inbox     chan inbound
		drainOnce sync.Once

		closeMu sync.Mutex
		closed  chan struct{}

		sleep         func(time.Duration)
		pollInterval  time.Duration
		connectCycles int
	}
)
