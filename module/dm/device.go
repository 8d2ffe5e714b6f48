package dm

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tinayla696/iotp_client_golang/module/topic"
)

// *--------------------------------------------------------------------------------------
// Attributes

// SetAttribute sets one attribute sent with the next manage request or
// reported through the firmware and location operations.
//
// Recognised names are lifetime, deviceActions, firmwareActions, metadata,
// deviceInfo, firmware.{version,name,uri,verifier} and
// location.{latitude,longitude,elevation,accuracy,measuredDateTime}.
func (m *Managed) SetAttribute(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &m.state
	var err error
	switch name {
	case "lifetime":
		var n int
		if n, err = strconv.Atoi(value); err == nil {
			if n < minLifetime {
				n = 0
			}
			s.Lifetime = n
		}
	case "deviceActions":
		s.SupportsDeviceActions, err = strconv.ParseBool(value)
	case "firmwareActions":
		s.SupportsFirmwareActions, err = strconv.ParseBool(value)
	case "metadata", "deviceInfo":
		if value != "" && !json.Valid([]byte(value)) {
			return fmt.Errorf("%w: %s is not JSON", ErrInvalidValue, name)
		}
		if name == "metadata" {
			s.Metadata = value
		} else {
			s.DeviceInfo = value
		}
	case "firmware.version":
		s.Firmware.Version = value
	case "firmware.name":
		s.Firmware.Name = value
	case "firmware.uri":
		s.Firmware.URI = value
	case "firmware.verifier":
		s.Firmware.Verifier = value
	case "location.latitude":
		s.Location.Latitude, err = strconv.ParseFloat(value, 64)
	case "location.longitude":
		s.Location.Longitude, err = strconv.ParseFloat(value, 64)
	case "location.elevation":
		s.Location.Elevation, err = strconv.ParseFloat(value, 64)
	case "location.accuracy":
		s.Location.Accuracy, err = strconv.ParseFloat(value, 64)
	case "location.measuredDateTime":
		s.Location.MeasuredDateTime = value
	default:
		return fmt.Errorf("%w: unknown attribute %q", ErrInvalidValue, name)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, name, value, err)
	}
	return nil
}

// *--------------------------------------------------------------------------------------
// Lifecycle

// Manage asks the platform to manage this device. An empty reqID reuses
// the outstanding request id, generating one on first use.
func (m *Managed) Manage(reqID string) error {
	m.mu.Lock()
	reqID = m.useRequestID(reqID)
	msg := manageRequest{
		D: manageData{
			Lifetime: m.state.Lifetime,
			Supports: supports{
				DeviceActions:   m.state.SupportsDeviceActions,
				FirmwareActions: m.state.SupportsFirmwareActions,
			},
			DeviceInfo: rawObject(m.state.DeviceInfo),
			Metadata:   rawObject(m.state.Metadata),
		},
		ReqID: reqID,
	}
	m.mu.Unlock()

	if err := m.publishOp(topic.OpManage, msg); err != nil {
		return fmt.Errorf("failed to send manage request: %w", err)
	}

	m.mu.Lock()
	m.state.Managed = true
	m.mu.Unlock()
	zap.S().Infof("Sent manage request: reqId=%s", reqID)
	return nil
}

// Unmanage asks the platform to stop managing this device.
func (m *Managed) Unmanage(reqID string) error {
	m.mu.Lock()
	reqID = m.useRequestID(reqID)
	m.mu.Unlock()

	if err := m.publishOp(topic.OpUnmanage, reqOnly{ReqID: reqID}); err != nil {
		return fmt.Errorf("failed to send unmanage request: %w", err)
	}

	m.mu.Lock()
	m.state.Managed = false
	m.state.Observe = false
	m.mu.Unlock()
	zap.S().Infof("Sent unmanage request: reqId=%s", reqID)
	return nil
}

// useRequestID must be called with mu held.
func (m *Managed) useRequestID(reqID string) string {
	if reqID == "" {
		reqID = m.state.RequestID
	}
	if reqID == "" {
		reqID = uuid.NewString()
	}
	m.state.RequestID = reqID
	return reqID
}

// *--------------------------------------------------------------------------------------
// Location and diagnostics

// UpdateLocation stores loc and reports it to the platform.
func (m *Managed) UpdateLocation(reqID string, loc Location) error {
	m.mu.Lock()
	if loc.MeasuredDateTime == "" {
		loc.MeasuredDateTime = m.timestamp()
	}
	loc.UpdatedDateTime = m.timestamp()
	m.state.Location = loc
	m.mu.Unlock()

	return m.publishOp(topic.OpUpdateLocation, withData{D: loc, ReqID: orNewID(reqID)})
}

// AddErrorCode reports a device error code.
func (m *Managed) AddErrorCode(reqID string, code int) error {
	return m.publishOp(topic.OpAddErrorCode, withData{D: errorCode{ErrorCode: code}, ReqID: orNewID(reqID)})
}

// ClearErrorCodes clears every error code reported so far.
func (m *Managed) ClearErrorCodes(reqID string) error {
	return m.publishOp(topic.OpClearErrorCodes, reqOnly{ReqID: orNewID(reqID)})
}

// AddLogEntry appends a diagnostic log entry. An empty timestamp is set to
// the current time.
func (m *Managed) AddLogEntry(reqID string, entry LogEntry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = m.timestamp()
	}
	return m.publishOp(topic.OpAddLog, withData{D: entry, ReqID: orNewID(reqID)})
}

// ClearLogs clears the diagnostic log.
func (m *Managed) ClearLogs(reqID string) error {
	return m.publishOp(topic.OpClearLog, reqOnly{ReqID: orNewID(reqID)})
}

// *--------------------------------------------------------------------------------------
// Firmware progress

// SetFirmwareState records download progress and notifies observers.
func (m *Managed) SetFirmwareState(state FirmwareState) error {
	if state < FirmwareIdle || state > FirmwareDownloaded {
		return fmt.Errorf("%w: firmware state %d", ErrInvalidValue, state)
	}

	m.mu.Lock()
	m.state.Firmware.State = state
	observe, status := m.state.Observe, m.firmwareStatus()
	m.mu.Unlock()

	return m.notify(observe, status)
}

// SetFirmwareUpdateStatus records the outcome of an update. Any status
// other than UpdateInProgress ends the attempt and returns the firmware
// to Idle.
func (m *Managed) SetFirmwareUpdateStatus(status UpdateStatus) error {
	if status < UpdateSuccess || status > UpdateInvalidURL {
		return fmt.Errorf("%w: update status %d", ErrInvalidValue, status)
	}

	m.mu.Lock()
	m.state.Firmware.UpdateStatus = status
	if status != UpdateInProgress {
		m.state.Firmware.State = FirmwareIdle
	}
	m.state.Firmware.UpdatedDateTime = m.timestamp()
	observe, fs := m.state.Observe, m.firmwareStatus()
	m.mu.Unlock()

	return m.notify(observe, fs)
}

func (m *Managed) notify(observe bool, status firmwareStatus) error {
	if !observe {
		return nil
	}
	msg := notification{D: fieldValue{Field: fieldFirmware, Value: status}}
	if err := m.publishOp(topic.OpNotify, msg); err != nil {
		return fmt.Errorf("failed to notify firmware status: %w", err)
	}
	return nil
}

func (m *Managed) publishOp(op topic.Operation, v any) error {
	name, err := topic.DeviceOperation(op, m.typeID, m.deviceID)
	if err != nil {
		return err
	}
	return m.publishJSON(name, v)
}

func orNewID(reqID string) string {
	if reqID == "" {
		return uuid.NewString()
	}
	return reqID
}
