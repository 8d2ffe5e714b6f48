package mqttm

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// *--------------------------------------------------------------------------------------
// New
func New(conf Config) (*Module, error) {
	m := newModule(conf)
	option, err := m.setOptions(conf)
	if err != nil {
		return nil, err
	}
	m.client = MQTT.NewClient(option)
	return m, nil
}

func newModule(conf Config) *Module {
	return &Module{
		conf:          conf,
		subs:          make(map[string]byte),
		inbox:         make(chan inbound, INBOX_SIZE),
		closed:        make(chan struct{}),
		sleep:         time.Sleep,
		pollInterval:  POLL_INTERVAL,
		connectCycles: CONNECT_CYCLES,
	}
}

// *--------------------------------------------------------------------------------------
// Setup MQTT options
func (m *Module) setOptions(conf Config) (*MQTT.ClientOptions, error) {
	if conf.BrokerURI == "" {
		return nil, fmt.Errorf("%w: broker URI is required", ErrInvalidConfig)
	}
	if conf.ClientID == "" {
		return nil, fmt.Errorf("%w: client ID is required", ErrInvalidConfig)
	}

	option := MQTT.NewClientOptions()
	option.AddBroker(conf.BrokerURI)
	option.SetClientID(conf.ClientID)
	if conf.Username != "" {
		option.SetUsername(conf.Username)
		option.SetPassword(conf.Password)
	}

	keepAlive := conf.KeepAlive
	if keepAlive <= 0 {
		keepAlive = KEEP_ALIVE_SEC
	}
	option.SetKeepAlive(keepAlive)
	option.SetMaxReconnectInterval(RECONNECT_INTERVAL_SEC)
	option.SetAutoReconnect(conf.AutoReconnect)
	option.SetCleanSession(conf.CleanSession)

	// Inbound messages stay in arrival order; messageHandler hands them to
	// the inbox goroutine so handlers may publish.
	option.SetOrderMatters(true)
	option.SetDefaultPublishHandler(m.messageHandler)
	option.SetOnConnectHandler(m.connectHandler)
	option.SetConnectionLostHandler(m.connectionLostHandler)

	tlsConf, err := tlsConfig(conf)
	if err != nil {
		return nil, err
	}
	if tlsConf != nil {
		option.SetTLSConfig(tlsConf)
	}
	return option, nil
}

// tlsConfig returns nil when no certificate material is configured.
func tlsConfig(conf Config) (*tls.Config, error) {
	if conf.RootCA == "" && conf.ClientCert == "" && !conf.ValidateServerCert {
		return nil, nil
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: !conf.ValidateServerCert,
		MinVersion:         tls.VersionTLS12,
	}

	if conf.RootCA != "" {
		pem, err := os.ReadFile(conf.RootCA)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrInvalidConfig, conf.RootCA)
		}
		tlsConf.RootCAs = pool
	}

	if conf.ClientCert != "" || conf.PrivateKey != "" {
		cert, err := tls.LoadX509KeyPair(conf.ClientCert, conf.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}
	return tlsConf, nil
}
