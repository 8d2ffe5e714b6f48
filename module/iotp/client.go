// Package iotp is the client entry point. A Client connects in one of the
// platform roles and ties the transport, the handler registry, the router
// and, for managed roles, the device management state together.
package iotp

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tinayla696/iotp_client_golang/module/config"
	"github.com/tinayla696/iotp_client_golang/module/dm"
	"github.com/tinayla696/iotp_client_golang/module/mqttm"
	"github.com/tinayla696/iotp_client_golang/module/registry"
	"github.com/tinayla696/iotp_client_golang/module/router"
	"github.com/tinayla696/iotp_client_golang/module/topic"
)

var (
	// ErrWrongRole is returned when an operation is not available to the
	// client's role.
	ErrWrongRole = errors.New("iotp: operation not permitted for role")

	// ErrNotManaged is returned by management operations on clients
	// without a managed role.
	ErrNotManaged = errors.New("iotp: client is not managed")
)

// Transport is the connection a Client runs on. *mqttm.Module implements it.
type Transport interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	Publish(topic string, qos byte, payload []byte) error
	Subscribe(filter string, qos byte) error
	Unsubscribe(filter string) error
	SetMessageHandler(fn mqttm.MessageFunc)
}

// Client is one connection to the platform.
type Client struct {
	role     config.Role
	identity config.Identity
	conn     Transport
	handlers *registry.Registry
	managed  *dm.Managed
	router   *router.Router
}

// New validates cfg for role and returns a client over an MQTT transport.
func New(cfg *config.Config, role config.Role) (*Client, error) {
	if err := cfg.Validate(role); err != nil {
		return nil, err
	}
	conn, err := mqttm.New(cfg.MQTT(role))
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT transport: %w", err)
	}
	return newClient(role, cfg.Identity, conn), nil
}

func newClient(role config.Role, identity config.Identity, conn Transport) *Client {
	c := &Client{
		role:     role,
		identity: identity,
		conn:     conn,
		handlers: registry.New(),
	}

	var manager router.Manager
	if role.IsManaged() {
		typeID, deviceID := c.self()
		c.managed = dm.New(conn, c.handlers, typeID, deviceID)
		manager = c.managed
	}
	c.router = router.New(c.handlers, manager)
	conn.SetMessageHandler(c.router.OnMessage)
	return c
}

// self returns the ids that select the gateway topic form, empty for
// devices.
func (c *Client) self() (typeID, deviceID string) {
	if c.role.IsGateway() {
		return c.identity.TypeID, c.identity.DeviceID
	}
	return "", ""
}

// Role returns the role the client connects as.
func (c *Client) Role() config.Role { return c.role }

// Handlers returns the client's handler registry.
func (c *Client) Handlers() *registry.Registry { return c.handlers }

// Managed returns the device management state, nil for unmanaged roles.
func (c *Client) Managed() *dm.Managed { return c.managed }

// *--------------------------------------------------------------------------------------
// Connection

// Connect connects and, for managed roles, subscribes to management
// actions.
func (c *Client) Connect() error {
	if err := c.conn.Connect(); err != nil {
		return err
	}
	if c.managed == nil {
		return nil
	}
	filter, err := topic.ActionFilter(c.self())
	if err != nil {
		return err
	}
	if err := c.conn.Subscribe(filter, dm.QoS); err != nil {
		return fmt.Errorf("failed to subscribe to management actions: %w", err)
	}
	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() error {
	if err := c.conn.Disconnect(); err != nil {
		return err
	}
	zap.S().Infof("Client disconnected: role=%s", c.role)
	return nil
}

// IsConnected reports whether the transport is online.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// *--------------------------------------------------------------------------------------
// Handlers

// SetCommandHandler registers h for every command the client receives.
func (c *Client) SetCommandHandler(h registry.AppHandler) error {
	return c.handlers.Register(registry.Commands, "", h)
}

// SetHandler registers h for messages of kind on filter. An empty filter
// covers every topic of the kind.
func (c *Client) SetHandler(kind registry.Kind, filter string, h registry.AppHandler) error {
	return c.handlers.Register(kind, filter, h)
}

// SetActionHandler registers h for a device management action, or for all
// of them with registry.DMActions.
func (c *Client) SetActionHandler(kind registry.Kind, h registry.ActionHandler) error {
	if c.managed == nil {
		return ErrNotManaged
	}
	return c.handlers.RegisterAction(kind, h)
}

func (c *Client) require(op string, roles ...config.Role) error {
	for _, r := range roles {
		if r == c.role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s as %s", ErrWrongRole, op, c.role)
}
