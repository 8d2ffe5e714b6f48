// Package topic builds and decomposes the MQTT topic strings used by the
// IoT platform.
//
// Two families exist. Application traffic lives under "iot-2/" (events,
// commands, notifications and monitoring messages). Device management
// lives under "iotdevice-1/" (device to platform) and "iotdm-1/"
// (platform to device). All literals in this file are part of the wire
// protocol.
package topic

import (
	"fmt"
	"strings"
)

// Root prefixes of the topic families.
const (
	AppRoot    = "iot-2/"
	DeviceRoot = "iotdevice-1/"
	ActionRoot = "iotdm-1/"

	levelWildcard = "+"
	multiWildcard = "#"
)

// Class is the broad category of an inbound topic.
type Class int

const (
	ClassUnknown Class = iota
	ClassCommand
	ClassEvent
	ClassNotification
	ClassDeviceMonitoring
	ClassAppMonitoring
	ClassAction
)

func (c Class) String() string {
	switch c {
	case ClassCommand:
		return "command"
	case ClassEvent:
		return "event"
	case ClassNotification:
		return "notification"
	case ClassDeviceMonitoring:
		return "device-monitoring"
	case ClassAppMonitoring:
		return "app-monitoring"
	case ClassAction:
		return "dm-action"
	}
	return "unknown"
}

// Action is a platform to device management request. The value is the
// topic suffix below "iotdm-1/".
type Action string

const (
	ActionResponse         Action = "response"
	ActionUpdate           Action = "device/update"
	ActionObserve          Action = "observe"
	ActionCancel           Action = "cancel"
	ActionReboot           Action = "mgmt/initiate/device/reboot"
	ActionFactoryReset     Action = "mgmt/initiate/device/factory_reset"
	ActionFirmwareDownload Action = "mgmt/initiate/firmware/download"
	ActionFirmwareUpdate   Action = "mgmt/initiate/firmware/update"
)

var knownActions = map[Action]struct{}{
	ActionResponse:         {},
	ActionUpdate:           {},
	ActionObserve:          {},
	ActionCancel:           {},
	ActionReboot:           {},
	ActionFactoryReset:     {},
	ActionFirmwareDownload: {},
	ActionFirmwareUpdate:   {},
}

// Valid reports whether a is one of the known management actions.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// Operation is a device to platform management message. The value is the
// topic suffix below "iotdevice-1/".
type Operation string

const (
	OpManage          Operation = "mgmt/manage"
	OpUnmanage        Operation = "mgmt/unmanage"
	OpResponse        Operation = "response"
	OpNotify          Operation = "notify"
	OpUpdateLocation  Operation = "device/update/location"
	OpAddErrorCode    Operation = "add/diag/errorCodes"
	OpClearErrorCodes Operation = "clear/diag/errorCodes"
	OpAddLog          Operation = "add/diag/log"
	OpClearLog        Operation = "clear/diag/log"
)

// Topic is the decomposed form of an inbound topic. Fields that do not
// apply to the topic's class are left empty.
type Topic struct {
	Class    Class
	TypeID   string
	DeviceID string
	AppID    string
	Name     string
	Format   string
	Action   Action
}

// IsApp reports whether name belongs to the application family.
func IsApp(name string) bool {
	return strings.HasPrefix(name, AppRoot)
}

// IsCommand reports whether name has the shape of a command topic,
// "iot-2/cmd/..." or "iot-2/type/<t>/id/<d>/cmd/...". The remaining
// segments are not checked; Parse does that.
func IsCommand(name string) bool {
	if !IsApp(name) {
		return false
	}
	parts := strings.Split(strings.TrimPrefix(name, AppRoot), "/")
	switch {
	case parts[0] == "cmd":
		return true
	case len(parts) >= 5 && parts[0] == "type" && parts[2] == "id":
		return parts[4] == "cmd"
	}
	return false
}

// IsAction reports whether name is a platform to device management topic.
func IsAction(name string) bool {
	return strings.HasPrefix(name, ActionRoot)
}

// *--------------------------------------------------------------------------------------
// Builders

// Event returns the topic a device publishes its own events on.
func Event(event, format string) (string, error) {
	if err := check("event", event, "format", format); err != nil {
		return "", err
	}
	return fmt.Sprintf("iot-2/evt/%s/fmt/%s", event, format), nil
}

// DeviceEvent returns the event topic of another device.
func DeviceEvent(typeID, deviceID, event, format string) (string, error) {
	if err := check("typeId", typeID, "deviceId", deviceID, "event", event, "format", format); err != nil {
		return "", err
	}
	return fmt.Sprintf("iot-2/type/%s/id/%s/evt/%s/fmt/%s", typeID, deviceID, event, format), nil
}

// Command returns the topic a device receives its own commands on.
func Command(command, format string) (string, error) {
	if err := check("command", command, "format", format); err != nil {
		return "", err
	}
	return fmt.Sprintf("iot-2/cmd/%s/fmt/%s", command, format), nil
}

// DeviceCommand returns the command topic of another device.
func DeviceCommand(typeID, deviceID, command, format string) (string, error) {
	if err := check("typeId", typeID, "deviceId", deviceID, "command", command, "format", format); err != nil {
		return "", err
	}
	return fmt.Sprintf("iot-2/type/%s/id/%s/cmd/%s/fmt/%s", typeID, deviceID, command, format), nil
}

// Notification returns the gateway notification topic for a device.
func Notification(typeID, deviceID string) (string, error) {
	if err := check("typeId", typeID, "deviceId", deviceID); err != nil {
		return "", err
	}
	return fmt.Sprintf("iot-2/type/%s/id/%s/notify", typeID, deviceID), nil
}

// DeviceMonitoring returns the connection status topic of a device.
func DeviceMonitoring(typeID, deviceID string) (string, error) {
	if err := check("typeId", typeID, "deviceId", deviceID); err != nil {
		return "", err
	}
	return fmt.Sprintf("iot-2/type/%s/id/%s/mon", typeID, deviceID), nil
}

// AppMonitoring returns the connection status topic of an application.
func AppMonitoring(appID string) (string, error) {
	if err := check("appId", appID); err != nil {
		return "", err
	}
	return fmt.Sprintf("iot-2/app/%s/mon", appID), nil
}

// ActionTopic returns the device form of a management action topic.
// It is also the filter the registry keys action handlers by.
func ActionTopic(action Action) string {
	return ActionRoot + string(action)
}

// GatewayAction returns the management action topic a gateway receives on
// behalf of a connected device.
func GatewayAction(typeID, deviceID string, action Action) (string, error) {
	if err := check("typeId", typeID, "deviceId", deviceID); err != nil {
		return "", err
	}
	if !action.Valid() {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidValue, action)
	}
	return fmt.Sprintf("iotdm-1/type/%s/id/%s/%s", typeID, deviceID, action), nil
}

// ActionFilter returns the subscription filter covering every management
// action. Empty ids select the device form.
func ActionFilter(typeID, deviceID string) (string, error) {
	if typeID == "" && deviceID == "" {
		return ActionRoot + multiWildcard, nil
	}
	if err := check("typeId", typeID, "deviceId", deviceID); err != nil {
		return "", err
	}
	return fmt.Sprintf("iotdm-1/type/%s/id/%s/%s", typeID, deviceID, multiWildcard), nil
}

// DeviceOperation returns the device to platform topic for op. Empty ids
// select the device form, otherwise the gateway-on-behalf form is built.
func DeviceOperation(op Operation, typeID, deviceID string) (string, error) {
	if op == "" {
		return "", fmt.Errorf("%w: operation", ErrMissingField)
	}
	if typeID == "" && deviceID == "" {
		return DeviceRoot + string(op), nil
	}
	if err := check("typeId", typeID, "deviceId", deviceID); err != nil {
		return "", err
	}
	return fmt.Sprintf("iotdevice-1/type/%s/id/%s/%s", typeID, deviceID, op), nil
}

// check validates name/value pairs. A level may be the single level
// wildcard so builders can produce subscription filters.
func check(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		name, value := pairs[i], pairs[i+1]
		if value == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, name)
		}
		if value == levelWildcard {
			continue
		}
		if strings.ContainsAny(value, "/+#") {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, name, value)
		}
	}
	return nil
}

// *--------------------------------------------------------------------------------------
// Parser

// Parse decomposes an inbound topic. Topics with too few levels, empty
// levels, or an unknown layout fail with ErrMalformedTopic.
func Parse(name string) (Topic, error) {
	segs := strings.Split(name, "/")
	for _, s := range segs {
		if s == "" {
			return Topic{}, malformed(name)
		}
	}

	switch segs[0] {
	case "iot-2":
		return parseApp(name, segs)
	case "iotdm-1":
		return parseAction(name, segs)
	}
	return Topic{}, malformed(name)
}

func parseApp(name string, segs []string) (Topic, error) {
	if len(segs) < 2 {
		return Topic{}, malformed(name)
	}

	switch segs[1] {
	case "cmd", "evt":
		// iot-2/cmd/{name}/fmt/{format}
		if len(segs) != 5 || segs[3] != "fmt" {
			return Topic{}, malformed(name)
		}
		return Topic{Class: appClass(segs[1]), Name: segs[2], Format: segs[4]}, nil

	case "app":
		// iot-2/app/{appId}/mon
		if len(segs) != 4 || segs[3] != "mon" {
			return Topic{}, malformed(name)
		}
		return Topic{Class: ClassAppMonitoring, AppID: segs[2], Name: segs[3]}, nil

	case "type":
		if len(segs) < 6 || segs[3] != "id" {
			return Topic{}, malformed(name)
		}
		t := Topic{TypeID: segs[2], DeviceID: segs[4]}
		switch segs[5] {
		case "cmd", "evt":
			// iot-2/type/{type}/id/{id}/cmd/{name}/fmt/{format}
			if len(segs) != 9 || segs[7] != "fmt" {
				return Topic{}, malformed(name)
			}
			t.Class, t.Name, t.Format = appClass(segs[5]), segs[6], segs[8]
			return t, nil
		case "notify":
			if len(segs) != 6 {
				return Topic{}, malformed(name)
			}
			t.Class, t.Name = ClassNotification, segs[5]
			return t, nil
		case "mon":
			if len(segs) != 6 {
				return Topic{}, malformed(name)
			}
			t.Class, t.Name = ClassDeviceMonitoring, segs[5]
			return t, nil
		}
	}
	return Topic{}, malformed(name)
}

func parseAction(name string, segs []string) (Topic, error) {
	t := Topic{Class: ClassAction}
	rest := segs[1:]
	if len(rest) > 0 && rest[0] == "type" {
		// iotdm-1/type/{type}/id/{id}/{action...}
		if len(rest) < 5 || rest[2] != "id" {
			return Topic{}, malformed(name)
		}
		t.TypeID, t.DeviceID = rest[1], rest[3]
		rest = rest[4:]
	}

	action := Action(strings.Join(rest, "/"))
	if !action.Valid() {
		return Topic{}, malformed(name)
	}
	t.Action = action
	return t, nil
}

func appClass(level string) Class {
	if level == "cmd" {
		return ClassCommand
	}
	return ClassEvent
}

func malformed(name string) error {
	return fmt.Errorf("%w: %q", ErrMalformedTopic, name)
}
