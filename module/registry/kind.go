package registry

import "github.com/tinayla696/iotp_client_golang/module/topic"

// Kind identifies what a handler entry is for. The order is significant:
// device management kinds come first and every kind from Commands onward
// receives application messages.
type Kind int

const (
	DMResponse Kind = iota + 1
	DMUpdate
	DMObserve
	DMCancel
	DMFactoryReset
	DMReboot
	DMFirmwareDownload
	DMFirmwareUpdate
	DMActions
	Commands
	Command
	Notification
	MonitoringMessage
	DeviceMonitoring
	AppEvent
	AppMonitoring
)

var kindNames = map[Kind]string{
	DMResponse:         "DMResponse",
	DMUpdate:           "DMUpdate",
	DMObserve:          "DMObserve",
	DMCancel:           "DMCancel",
	DMFactoryReset:     "DMFactoryReset",
	DMReboot:           "DMReboot",
	DMFirmwareDownload: "DMFirmwareDownload",
	DMFirmwareUpdate:   "DMFirmwareUpdate",
	DMActions:          "DMActions",
	Commands:           "Commands",
	Command:            "Command",
	Notification:       "Notification",
	MonitoringMessage:  "MonitoringMessage",
	DeviceMonitoring:   "DeviceMonitoring",
	AppEvent:           "AppEvent",
	AppMonitoring:      "AppMonitoring",
}

var kindActions = map[Kind]topic.Action{
	DMResponse:         topic.ActionResponse,
	DMUpdate:           topic.ActionUpdate,
	DMObserve:          topic.ActionObserve,
	DMCancel:           topic.ActionCancel,
	DMFactoryReset:     topic.ActionFactoryReset,
	DMReboot:           topic.ActionReboot,
	DMFirmwareDownload: topic.ActionFirmwareDownload,
	DMFirmwareUpdate:   topic.ActionFirmwareUpdate,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Valid reports whether k is a defined kind.
func (k Kind) Valid() bool {
	return k >= DMResponse && k <= AppMonitoring
}

// IsAction reports whether k belongs to the device management category.
func (k Kind) IsAction() bool {
	return k >= DMResponse && k <= DMActions
}

// IsCommand reports whether k belongs to the command category.
func (k Kind) IsCommand() bool {
	return k == Commands || k == Command
}

// IsCatchAll reports whether k is one of the two category-wide kinds.
func (k Kind) IsCatchAll() bool {
	return k == Commands || k == DMActions
}

// Action returns the management action k handles. DMActions and
// application kinds return false.
func (k Kind) Action() (topic.Action, bool) {
	a, ok := kindActions[k]
	return a, ok
}

// KindOf maps a management action to its handler kind.
func KindOf(action topic.Action) (Kind, bool) {
	for k, a := range kindActions {
		if a == action {
			return k, true
		}
	}
	return 0, false
}

// accepts reports whether a filter-less entry of kind k handles topics of class c.
func (k Kind) accepts(c topic.Class) bool {
	switch k {
	case Command:
		return c == topic.ClassCommand
	case Notification:
		return c == topic.ClassNotification
	case MonitoringMessage, DeviceMonitoring:
		return c == topic.ClassDeviceMonitoring
	case AppEvent:
		return c == topic.ClassEvent
	case AppMonitoring:
		return c == topic.ClassAppMonitoring
	}
	return false
}
