// Package dm implements the device side of the device management
// protocol: the managed/unmanaged lifecycle, the firmware state machine
// and request id correlation.
//
// A Managed value is owned by one client. Handle processes one platform
// request at a time; device-side operations may run concurrently with it.
package dm

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tinayla696/iotp_client_golang/module/registry"
	"github.com/tinayla696/iotp_client_golang/module/topic"
)

// QoS used for every management message.
const QoS byte = 1

type (
	// Publisher sends a message to the broker.
	Publisher interface {
		Publish(topic string, qos byte, payload []byte) error
	}

	// Handlers finds the callback registered for a topic.
	Handlers interface {
		Lookup(name string) (registry.Entry, bool)
	}

	// Managed is the management state of one device or gateway.
	Managed struct {
		pub      Publisher
		handlers Handlers
		typeID   string
		deviceID string
		now      func() time.Time

		// handling serializes Handle. mu guards state and is never held
		// while a callback runs.
		handling sync.Mutex
		mu       sync.Mutex
		state    State
	}
)

// New returns the management state of a device. For a gateway, typeID and
// deviceID name the gateway itself and select the gateway topic form.
func New(pub Publisher, handlers Handlers, typeID, deviceID string) *Managed {
	return &Managed{
		pub:      pub,
		handlers: handlers,
		typeID:   typeID,
		deviceID: deviceID,
		now:      time.Now,
	}
}

// State returns a snapshot of the managed state.
func (m *Managed) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsManaged reports whether the last manage request was published.
func (m *Managed) IsManaged() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Managed
}

// RequestID returns the outstanding request id, empty if none.
func (m *Managed) RequestID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.RequestID
}

// *--------------------------------------------------------------------------------------
// Platform requests

// exchange carries one inbound request through its handler.
type exchange struct {
	t         topic.Topic
	req       request
	payload   []byte
	respTopic string
}

// Handle processes a platform to device management message. Requests that
// violate a precondition are answered on the response topic and reported
// with ErrBadRequest or ErrNotSupported.
func (m *Managed) Handle(name string, payload []byte) error {
	t, err := topic.Parse(name)
	if err != nil {
		return err
	}
	if t.Class != topic.ClassAction {
		return fmt.Errorf("%w: %q is not a management topic", topic.ErrMalformedTopic, name)
	}

	m.handling.Lock()
	defer m.handling.Unlock()

	x := exchange{t: t, payload: payload}
	if err := json.Unmarshal(payload, &x.req); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadRequest, t.Action, err)
	}
	if x.req.ReqID == "" {
		return fmt.Errorf("%w: %s: missing reqId", ErrBadRequest, t.Action)
	}

	if t.Action == topic.ActionResponse {
		return m.onResponse(x)
	}

	if id := m.RequestID(); id != "" && id == x.req.ReqID {
		return fmt.Errorf("%w: %s carries %q", ErrInvalidRequestID, t.Action, id)
	}

	x.respTopic, err = topic.DeviceOperation(topic.OpResponse, t.TypeID, t.DeviceID)
	if err != nil {
		return err
	}

	switch t.Action {
	case topic.ActionUpdate:
		return m.onUpdate(x)
	case topic.ActionObserve:
		return m.onObserve(x)
	case topic.ActionCancel:
		return m.onCancel(x)
	case topic.ActionReboot, topic.ActionFactoryReset:
		return m.onDeviceAction(x)
	case topic.ActionFirmwareDownload:
		return m.onFirmwareDownload(x)
	case topic.ActionFirmwareUpdate:
		return m.onFirmwareUpdate(x)
	}
	return fmt.Errorf("%w: %s", topic.ErrMalformedTopic, name)
}

func (m *Managed) onResponse(x exchange) error {
	m.mu.Lock()
	if m.state.RequestID == "" {
		m.state.RequestID = x.req.ReqID
	}
	correlated := m.state.RequestID == x.req.ReqID
	m.mu.Unlock()

	if !correlated {
		zap.S().Debugf("Ignoring uncorrelated response: reqId=%s", x.req.ReqID)
		return nil
	}
	if rc := x.req.RC; rc != nil && *rc >= RCBadRequest {
		zap.S().Warnf("Platform rejected request %s: rc=%d", x.req.ReqID, *rc)
	} else if rc != nil {
		zap.S().Debugf("Platform accepted request %s: rc=%d", x.req.ReqID, *rc)
	}
	m.invoke(x)
	return nil
}

func (m *Managed) onUpdate(x exchange) error {
	var location *Location

	m.mu.Lock()
	for _, f := range x.req.D.Fields {
		switch f.Field {
		case fieldLocation:
			loc := m.state.Location
			if err := json.Unmarshal(f.Value, &loc); err != nil {
				m.mu.Unlock()
				return m.reject(x, RCBadRequest, fmt.Errorf("%w: location: %v", ErrBadRequest, err))
			}
			loc.UpdatedDateTime = m.timestamp()
			m.state.Location = loc
			location = &loc

		case fieldFirmware:
			fw := m.state.Firmware
			if err := json.Unmarshal(f.Value, &fw); err != nil {
				m.mu.Unlock()
				return m.reject(x, RCBadRequest, fmt.Errorf("%w: %s: %v", ErrBadRequest, fieldFirmware, err))
			}
			fw.UpdatedDateTime = m.timestamp()
			m.state.Firmware = fw

		case fieldMetadata:
			m.state.Metadata = string(f.Value)

		case fieldDeviceInfo:
			m.state.DeviceInfo = string(f.Value)

		default:
			zap.S().Debugf("Ignoring unknown update field: %s", f.Field)
		}
	}
	m.mu.Unlock()

	if location != nil {
		name, err := topic.DeviceOperation(topic.OpUpdateLocation, x.t.TypeID, x.t.DeviceID)
		if err != nil {
			return err
		}
		if err := m.publishJSON(name, withData{D: location, ReqID: uuid.NewString()}); err != nil {
			return fmt.Errorf("failed to forward location: %w", err)
		}
	}

	if err := m.respond(x, RCUpdateSuccess, nil); err != nil {
		return err
	}
	m.invoke(x)
	return nil
}

func (m *Managed) onObserve(x exchange) error {
	m.mu.Lock()
	m.state.Observe = true
	status := m.firmwareStatus()
	m.mu.Unlock()

	d := &responseData{Fields: []fieldValue{{Field: fieldFirmware, Value: status}}}
	if err := m.respond(x, RCSuccess, d); err != nil {
		return err
	}
	m.invoke(x)
	return nil
}

func (m *Managed) onCancel(x exchange) error {
	if !x.req.hasField(fieldFirmware) {
		return m.reject(x, RCBadRequest, fmt.Errorf("%w: cancel without %s", ErrBadRequest, fieldFirmware))
	}

	m.mu.Lock()
	m.state.Observe = false
	m.mu.Unlock()

	if err := m.respond(x, RCSuccess, nil); err != nil {
		return err
	}
	m.invoke(x)
	return nil
}

func (m *Managed) onDeviceAction(x exchange) error {
	m.mu.Lock()
	supported := m.state.SupportsDeviceActions
	m.mu.Unlock()

	if !supported || !m.invoke(x) {
		return m.reject(x, RCNotSupported, fmt.Errorf("%w: %s", ErrNotSupported, x.t.Action))
	}
	return nil
}

func (m *Managed) onFirmwareDownload(x exchange) error {
	return m.firmwareAction(x, FirmwareIdle, FirmwareDownloading)
}

func (m *Managed) onFirmwareUpdate(x exchange) error {
	return m.firmwareAction(x, FirmwareDownloaded, FirmwareDownloaded)
}

// firmwareAction accepts a firmware request when the firmware is in state
// want, moves it to next and hands the request to its callback. An
// accepted update stays in progress until the device reports its outcome.
func (m *Managed) firmwareAction(x exchange, want, next FirmwareState) error {
	isUpdate := x.t.Action == topic.ActionFirmwareUpdate

	m.mu.Lock()
	state := m.state.Firmware.State
	status := m.state.Firmware.UpdateStatus
	supported := m.state.SupportsFirmwareActions
	m.mu.Unlock()

	if state != want {
		return m.reject(x, RCBadRequest, fmt.Errorf("%w: %s while firmware is %s", ErrBadRequest, x.t.Action, state))
	}
	if isUpdate && status == UpdateInProgress {
		return m.reject(x, RCBadRequest, fmt.Errorf("%w: %s while an update is in progress", ErrBadRequest, x.t.Action))
	}
	if _, _, ok := m.handler(x.t.Action); !supported || !ok {
		return m.reject(x, RCNotSupported, fmt.Errorf("%w: %s", ErrNotSupported, x.t.Action))
	}

	m.mu.Lock()
	m.state.Firmware.State = next
	if isUpdate {
		m.state.Firmware.UpdateStatus = UpdateInProgress
	}
	m.mu.Unlock()

	if err := m.respond(x, RCAccepted, nil); err != nil {
		return err
	}
	m.invoke(x)
	return nil
}

// handler returns the callback for action with the kind it is invoked with.
func (m *Managed) handler(action topic.Action) (registry.ActionHandler, registry.Kind, bool) {
	kind, ok := registry.KindOf(action)
	if !ok || m.handlers == nil {
		return nil, 0, false
	}
	e, ok := m.handlers.Lookup(topic.ActionTopic(action))
	if !ok || e.Action == nil {
		return nil, 0, false
	}
	return e.Action, kind, true
}

// invoke runs the callback of the exchange's action. It reports whether
// one was registered.
func (m *Managed) invoke(x exchange) bool {
	h, kind, ok := m.handler(x.t.Action)
	if !ok {
		return false
	}
	h(kind, x.req.ReqID, x.payload)
	return true
}

func (m *Managed) respond(x exchange, rc int, d *responseData) error {
	if err := m.publishJSON(x.respTopic, response{RC: rc, ReqID: x.req.ReqID, D: d}); err != nil {
		return fmt.Errorf("failed to respond to %s: %w", x.t.Action, err)
	}
	return nil
}

// reject answers the request with rc and returns cause.
func (m *Managed) reject(x exchange, rc int, cause error) error {
	if err := m.respond(x, rc, nil); err != nil {
		zap.S().Errorf("Failed to reject %s: %v", x.t.Action, err)
	}
	return cause
}

func (m *Managed) publishJSON(name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.pub.Publish(name, QoS, payload)
}

// firmwareStatus must be called with mu held.
func (m *Managed) firmwareStatus() firmwareStatus {
	return firmwareStatus{
		State:        m.state.Firmware.State,
		UpdateStatus: m.state.Firmware.UpdateStatus,
	}
}

func (m *Managed) timestamp() string {
	return m.now().UTC().Format(time.RFC3339)
}
