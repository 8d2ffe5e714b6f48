package iotp

import "github.com/tinayla696/iotp_client_golang/module/dm"

// Manage sends a manage request. See dm.Managed.Manage.
func (c *Client) Manage(reqID string) error {
	if c.managed == nil {
		return ErrNotManaged
	}
	return c.managed.Manage(reqID)
}

// Unmanage sends an unmanage request.
func (c *Client) Unmanage(reqID string) error {
	if c.managed == nil {
		return ErrNotManaged
	}
	return c.managed.Unmanage(reqID)
}

// SetAttribute sets a management attribute.
func (c *Client) SetAttribute(name, value string) error {
	if c.managed == nil {
		return ErrNotManaged
	}
	return c.managed.SetAttribute(name, value)
}

// SetFirmwareState reports firmware download progress.
func (c *Client) SetFirmwareState(state dm.FirmwareState) error {
	if c.managed == nil {
		return ErrNotManaged
	}
	return c.managed.SetFirmwareState(state)
}

// SetFirmwareUpdateStatus reports the outcome of a firmware update.
func (c *Client) SetFirmwareUpdateStatus(status dm.UpdateStatus) error {
	if c.managed == nil {
		return ErrNotManaged
	}
	return c.managed.SetFirmwareUpdateStatus(status)
}
