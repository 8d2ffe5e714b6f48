package iotp

import (
	"github.com/tinayla696/iotp_client_golang/module/config"
	"github.com/tinayla696/iotp_client_golang/module/topic"
)

var (
	deviceRoles  = []config.Role{config.RoleDevice, config.RoleManagedDevice}
	gatewayRoles = []config.Role{config.RoleGateway, config.RoleManagedGateway}
	ownerRoles   = append(append([]config.Role{}, deviceRoles...), gatewayRoles...)
)

// *--------------------------------------------------------------------------------------
// Events and commands

// PublishEvent publishes an event of the client itself. Gateways publish
// under their own type and id.
func (c *Client) PublishEvent(event, format string, data []byte, qos byte) error {
	if err := c.require("PublishEvent", ownerRoles...); err != nil {
		return err
	}
	var name string
	var err error
	if c.role.IsGateway() {
		name, err = topic.DeviceEvent(c.identity.TypeID, c.identity.DeviceID, event, format)
	} else {
		name, err = topic.Event(event, format)
	}
	if err != nil {
		return err
	}
	return c.conn.Publish(name, qos, data)
}

// PublishDeviceEvent publishes an event on behalf of another device.
func (c *Client) PublishDeviceEvent(typeID, deviceID, event, format string, data []byte, qos byte) error {
	roles := append([]config.Role{config.RoleApplication}, gatewayRoles...)
	if err := c.require("PublishDeviceEvent", roles...); err != nil {
		return err
	}
	name, err := topic.DeviceEvent(typeID, deviceID, event, format)
	if err != nil {
		return err
	}
	return c.conn.Publish(name, qos, data)
}

// PublishDeviceCommand sends a command to a device.
func (c *Client) PublishDeviceCommand(typeID, deviceID, command, format string, data []byte, qos byte) error {
	if err := c.require("PublishDeviceCommand", config.RoleApplication); err != nil {
		return err
	}
	name, err := topic.DeviceCommand(typeID, deviceID, command, format)
	if err != nil {
		return err
	}
	return c.conn.Publish(name, qos, data)
}

// SubscribeToCommands subscribes to the client's own commands. "+" selects
// every command or format.
func (c *Client) SubscribeToCommands(command, format string, qos byte) error {
	if err := c.require("SubscribeToCommands", ownerRoles...); err != nil {
		return err
	}
	var filter string
	var err error
	if c.role.IsGateway() {
		filter, err = topic.DeviceCommand(c.identity.TypeID, c.identity.DeviceID, command, format)
	} else {
		filter, err = topic.Command(command, format)
	}
	if err != nil {
		return err
	}
	return c.conn.Subscribe(filter, qos)
}

// SubscribeToDeviceCommands subscribes a gateway to commands for a device
// connected through it.
func (c *Client) SubscribeToDeviceCommands(typeID, deviceID, command, format string, qos byte) error {
	if err := c.require("SubscribeToDeviceCommands", gatewayRoles...); err != nil {
		return err
	}
	filter, err := topic.DeviceCommand(typeID, deviceID, command, format)
	if err != nil {
		return err
	}
	return c.conn.Subscribe(filter, qos)
}

// SubscribeToNotifications subscribes a gateway to its notifications.
func (c *Client) SubscribeToNotifications(qos byte) error {
	if err := c.require("SubscribeToNotifications", gatewayRoles...); err != nil {
		return err
	}
	filter, err := topic.Notification(c.identity.TypeID, c.identity.DeviceID)
	if err != nil {
		return err
	}
	return c.conn.Subscribe(filter, qos)
}

// *--------------------------------------------------------------------------------------
// Application subscriptions

// SubscribeToDeviceEvents subscribes an application to device events.
func (c *Client) SubscribeToDeviceEvents(typeID, deviceID, event, format string, qos byte) error {
	if err := c.require("SubscribeToDeviceEvents", config.RoleApplication); err != nil {
		return err
	}
	filter, err := topic.DeviceEvent(typeID, deviceID, event, format)
	if err != nil {
		return err
	}
	return c.conn.Subscribe(filter, qos)
}

// SubscribeToDeviceMonitoring subscribes an application to device
// connection status messages.
func (c *Client) SubscribeToDeviceMonitoring(typeID, deviceID string, qos byte) error {
	if err := c.require("SubscribeToDeviceMonitoring", config.RoleApplication); err != nil {
		return err
	}
	filter, err := topic.DeviceMonitoring(typeID, deviceID)
	if err != nil {
		return err
	}
	return c.conn.Subscribe(filter, qos)
}

// SubscribeToAppMonitoring subscribes an application to application
// connection status messages.
func (c *Client) SubscribeToAppMonitoring(appID string, qos byte) error {
	if err := c.require("SubscribeToAppMonitoring", config.RoleApplication); err != nil {
		return err
	}
	filter, err := topic.AppMonitoring(appID)
	if err != nil {
		return err
	}
	return c.conn.Subscribe(filter, qos)
}

// Unsubscribe removes a subscription made by one of the Subscribe methods.
func (c *Client) Unsubscribe(filter string) error {
	return c.conn.Unsubscribe(filter)
}
