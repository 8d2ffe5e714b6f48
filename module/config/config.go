// Package config loads client settings from a YAML file and WIOTP_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/tinayla696/iotp_client_golang/module/mqttm"
)

// Role selects how a client identifies itself to the platform.
type Role string

const (
	RoleDevice         Role = "device"
	RoleGateway        Role = "gateway"
	RoleApplication    Role = "application"
	RoleManagedDevice  Role = "managedDevice"
	RoleManagedGateway Role = "managedGateway"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleDevice, RoleGateway, RoleApplication, RoleManagedDevice, RoleManagedGateway:
		return true
	}
	return false
}

// IsGateway reports whether r connects as a gateway.
func (r Role) IsGateway() bool {
	return r == RoleGateway || r == RoleManagedGateway
}

// IsManaged reports whether r takes part in device management.
func (r Role) IsManaged() bool {
	return r == RoleManagedDevice || r == RoleManagedGateway
}

const (
	// QuickstartOrg is the unauthenticated demo organization.
	QuickstartOrg = "quickstart"

	// TokenAuthUser is the username devices and gateways connect with.
	TokenAuthUser = "use-token-auth"

	DefaultDomain = "internetofthings.ibmcloud.com"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

type (
	Config struct {
		Identity Identity `yaml:"identity"`
		Auth     Auth     `yaml:"auth"`
		Options  Options  `yaml:"options"`
	}

	Identity struct {
		OrgID    string `yaml:"orgId"`
		TypeID   string `yaml:"typeId"`
		DeviceID string `yaml:"deviceId"`
		AppID    string `yaml:"appId"`
	}

	Auth struct {
		Key      string `yaml:"key"`
		Token    string `yaml:"token"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
	}

	Options struct {
		Domain   string      `yaml:"domain"`
		LogLevel string      `yaml:"logLevel"`
		LogDir   string      `yaml:"logDir"`
		MQTT     MQTTOptions `yaml:"mqtt"`
	}

	MQTTOptions struct {
		Port               int    `yaml:"port"`
		Transport          string `yaml:"transport"`
		CAFile             string `yaml:"caFile"`
		KeepAlive          int    `yaml:"keepAlive"`
		CleanSession       bool   `yaml:"cleanSession"`
		ValidateServerCert bool   `yaml:"validateServerCert"`
		AutoReconnect      bool   `yaml:"autoReconnect"`
	}
)

// Default returns the configuration used before the file and environment
// are applied.
func Default() *Config {
	return &Config{
		Options: Options{
			Domain:   DefaultDomain,
			LogLevel: "info",
			LogDir:   "./log",
			MQTT: MQTTOptions{
				Port:               8883,
				Transport:          "tcp",
				KeepAlive:          60,
				CleanSession:       true,
				ValidateServerCert: true,
				AutoReconnect:      true,
			},
		},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result for role.
func Load(path string, role Role) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(role); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"WIOTP_IDENTITY_ORGID":         &cfg.Identity.OrgID,
		"WIOTP_IDENTITY_TYPEID":        &cfg.Identity.TypeID,
		"WIOTP_IDENTITY_DEVICEID":      &cfg.Identity.DeviceID,
		"WIOTP_IDENTITY_APPID":         &cfg.Identity.AppID,
		"WIOTP_AUTH_KEY":               &cfg.Auth.Key,
		"WIOTP_AUTH_TOKEN":             &cfg.Auth.Token,
		"WIOTP_OPTIONS_DOMAIN":         &cfg.Options.Domain,
		"WIOTP_OPTIONS_LOGLEVEL":       &cfg.Options.LogLevel,
		"WIOTP_OPTIONS_MQTT_CAFILE":    &cfg.Options.MQTT.CAFile,
		"WIOTP_OPTIONS_MQTT_TRANSPORT": &cfg.Options.MQTT.Transport,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("WIOTP_OPTIONS_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WIOTP_OPTIONS_MQTT_PORT: %w", err)
		}
		cfg.Options.MQTT.Port = port
	}
	return nil
}

// Validate reports every problem with the configuration for role.
func (c *Config) Validate(role Role) error {
	var errs error
	invalid := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if !role.Valid() {
		invalid("unknown role %q", role)
	}

	id := c.Identity
	for name, v := range map[string]string{
		"identity.orgId":    id.OrgID,
		"identity.typeId":   id.TypeID,
		"identity.deviceId": id.DeviceID,
		"identity.appId":    id.AppID,
	} {
		if strings.ContainsAny(v, "/+#:") {
			invalid("%s contains a reserved character", name)
		}
	}

	if id.OrgID == "" {
		invalid("identity.orgId is required")
	}
	quickstart := id.OrgID == QuickstartOrg

	switch role {
	case RoleApplication:
		if id.AppID == "" {
			invalid("identity.appId is required")
		}
		if !quickstart && (c.Auth.Key == "" || c.Auth.Token == "") {
			invalid("auth.key and auth.token are required")
		}
	case RoleDevice, RoleGateway, RoleManagedDevice, RoleManagedGateway:
		if id.TypeID == "" {
			invalid("identity.typeId is required")
		}
		if id.DeviceID == "" {
			invalid("identity.deviceId is required")
		}
		if !quickstart && c.Auth.Token == "" {
			invalid("auth.token is required")
		}
	}
	if quickstart && role.IsManaged() {
		invalid("quickstart does not support device management")
	}

	o := c.Options
	if o.Domain == "" {
		invalid("options.domain is required")
	}
	if _, err := zapcore.ParseLevel(o.LogLevel); err != nil {
		invalid("options.logLevel %q", o.LogLevel)
	}
	if o.MQTT.Port < 1 || o.MQTT.Port > 65535 {
		invalid("options.mqtt.port %d out of range", o.MQTT.Port)
	}
	if o.MQTT.Transport != "tcp" && o.MQTT.Transport != "websockets" {
		invalid("options.mqtt.transport %q must be tcp or websockets", o.MQTT.Transport)
	}
	if o.MQTT.KeepAlive < 0 {
		invalid("options.mqtt.keepAlive must not be negative")
	}
	return errs
}

// LogLevel returns the parsed log level, info when unset.
func (c *Config) LogLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.Options.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// ClientID returns the MQTT client id for role.
func (c *Config) ClientID(role Role) string {
	id := c.Identity
	switch {
	case role == RoleApplication:
		return fmt.Sprintf("a:%s:%s", id.OrgID, id.AppID)
	case role.IsGateway():
		return fmt.Sprintf("g:%s:%s:%s", id.OrgID, id.TypeID, id.DeviceID)
	}
	return fmt.Sprintf("d:%s:%s:%s", id.OrgID, id.TypeID, id.DeviceID)
}

// BrokerURI returns the broker address derived from the organization,
// domain, port and transport.
func (c *Config) BrokerURI() string {
	m := c.Options.MQTT
	scheme := "ssl"
	switch {
	case m.Transport == "websockets" && m.Port == 80:
		scheme = "ws"
	case m.Transport == "websockets":
		scheme = "wss"
	case m.Port == 1883:
		scheme = "tcp"
	}
	return fmt.Sprintf("%s://%s.messaging.%s:%d", scheme, c.Identity.OrgID, c.Options.Domain, m.Port)
}

// MQTT returns the transport settings for role.
func (c *Config) MQTT(role Role) mqttm.Config {
	conf := mqttm.Config{
		BrokerURI:          c.BrokerURI(),
		ClientID:           c.ClientID(role),
		RootCA:             c.Options.MQTT.CAFile,
		ClientCert:         c.Auth.CertFile,
		PrivateKey:         c.Auth.KeyFile,
		ValidateServerCert: c.Options.MQTT.ValidateServerCert,
		KeepAlive:          time.Duration(c.Options.MQTT.KeepAlive) * time.Second,
		CleanSession:       c.Options.MQTT.CleanSession,
		AutoReconnect:      c.Options.MQTT.AutoReconnect,
	}

	if c.Identity.OrgID == QuickstartOrg {
		conf.ValidateServerCert = false
		return conf
	}
	if role == RoleApplication {
		conf.Username, conf.Password = c.Auth.Key, c.Auth.Token
	} else {
		conf.Username, conf.Password = TokenAuthUser, c.Auth.Token
	}
	return conf
}
