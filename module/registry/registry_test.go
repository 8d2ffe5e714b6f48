package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinayla696/iotp_client_golang/module/topic"
)

func noopApp(string, string, string, string, []byte) {}

func noopAction(Kind, string, []byte) {}

func TestLookupEmpty(t *testing.T) {
	r := New()
	_, ok := r.Lookup("iot-2/cmd/restart/fmt/json")
	assert.False(t, ok)
	_, ok = r.Lookup("iotdm-1/observe")
	assert.False(t, ok)
}

func TestRegisterThenLookup(t *testing.T) {
	r := New()
	filter := "iot-2/cmd/restart/fmt/json"

	var calls int
	require.NoError(t, r.Register(Command, filter, func(string, string, string, string, []byte) { calls++ }))

	e, ok := r.Lookup(filter)
	require.True(t, ok)
	assert.Equal(t, Command, e.Kind)
	assert.Equal(t, filter, e.Filter)
	e.App("", "", "restart", "json", nil)
	assert.Equal(t, 1, calls)

	_, ok = r.Lookup("iot-2/cmd/stop/fmt/json")
	assert.False(t, ok)
}

func TestRegisterUpdatesInPlace(t *testing.T) {
	r := New()
	filter := "iot-2/cmd/restart/fmt/json"

	var first, second int
	require.NoError(t, r.Register(Command, filter, func(string, string, string, string, []byte) { first++ }))
	require.NoError(t, r.Register(Command, filter, func(string, string, string, string, []byte) { second++ }))
	assert.Equal(t, 1, r.Len())

	e, ok := r.Lookup(filter)
	require.True(t, ok)
	e.App("", "", "restart", "json", nil)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestRegisterKindMismatch(t *testing.T) {
	r := New()
	filter := "iot-2/type/+/id/+/evt/+/fmt/+"
	require.NoError(t, r.Register(AppEvent, filter, noopApp))

	err := r.Register(Command, filter, noopApp)
	assert.ErrorIs(t, err, ErrKindMismatch)

	e, ok := r.Lookup(filter)
	require.True(t, ok)
	assert.Equal(t, AppEvent, e.Kind)
	assert.Equal(t, 1, r.Len())
}

func TestSecondCatchAllRejected(t *testing.T) {
	r := New()

	var first, second int
	require.NoError(t, r.Register(Commands, "", func(string, string, string, string, []byte) { first++ }))
	err := r.Register(Commands, "", func(string, string, string, string, []byte) { second++ })
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, 1, r.Len())

	e, ok := r.Lookup("iot-2/type/sensorA/id/42/cmd/restart/fmt/json")
	require.True(t, ok)
	e.App("sensorA", "42", "restart", "json", nil)
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
}

func TestCatchAllBlocksCategory(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Commands, "", noopApp))
	assert.ErrorIs(t, r.Register(Command, "iot-2/cmd/restart/fmt/json", noopApp), ErrAlreadyRegistered)

	// Other categories are unaffected.
	require.NoError(t, r.Register(Notification, "", noopApp))
	require.NoError(t, r.RegisterAction(DMReboot, noopAction))

	require.NoError(t, r.RegisterAction(DMActions, noopAction))
	assert.ErrorIs(t, r.RegisterAction(DMFirmwareUpdate, noopAction), ErrAlreadyRegistered)
	assert.ErrorIs(t, r.RegisterAction(DMActions, noopAction), ErrAlreadyRegistered)
}

func TestCatchAllWinsLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Command, "iot-2/cmd/restart/fmt/json", noopApp))
	require.NoError(t, r.RegisterAction(DMReboot, noopAction))
	require.NoError(t, r.Register(Commands, "", noopApp))
	require.NoError(t, r.RegisterAction(DMActions, noopAction))

	e, ok := r.Lookup("iot-2/cmd/restart/fmt/json")
	require.True(t, ok)
	assert.Equal(t, Commands, e.Kind)

	e, ok = r.Lookup(topic.ActionTopic(topic.ActionReboot))
	require.True(t, ok)
	assert.Equal(t, DMActions, e.Kind)

	// Events are not commands.
	_, ok = r.Lookup("iot-2/evt/status/fmt/json")
	assert.False(t, ok)
}

func TestCatchAllTakesUndecodableCommands(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Commands, "", noopApp))

	e, ok := r.Lookup("iot-2/cmd/restart")
	require.True(t, ok)
	assert.Equal(t, Commands, e.Kind)

	_, ok = r.Lookup("iot-2/type/sensorA/id/42/evt/temp/fmt/json")
	assert.False(t, ok)
}

func TestKindWideEntries(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Notification, "", noopApp))
	require.NoError(t, r.Register(DeviceMonitoring, "", noopApp))
	require.NoError(t, r.Register(AppMonitoring, "", noopApp))

	e, ok := r.Lookup("iot-2/type/sensorA/id/42/notify")
	require.True(t, ok)
	assert.Equal(t, Notification, e.Kind)

	e, ok = r.Lookup("iot-2/type/sensorA/id/42/mon")
	require.True(t, ok)
	assert.Equal(t, DeviceMonitoring, e.Kind)

	e, ok = r.Lookup("iot-2/app/dashboard/mon")
	require.True(t, ok)
	assert.Equal(t, AppMonitoring, e.Kind)

	// Re-registering a kind-wide entry updates it.
	require.NoError(t, r.Register(Notification, "", noopApp))
	assert.Equal(t, 3, r.Len())
}

func TestRegisterAction(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAction(DMFirmwareDownload, noopAction))

	e, ok := r.Lookup("iotdm-1/mgmt/initiate/firmware/download")
	require.True(t, ok)
	assert.Equal(t, DMFirmwareDownload, e.Kind)
	assert.NotNil(t, e.Action)
	assert.Nil(t, e.App)

	_, ok = r.Lookup("iotdm-1/mgmt/initiate/firmware/update")
	assert.False(t, ok)
}

func TestRegisterInvalid(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Register(Command, "iot-2/cmd/x/fmt/json", nil), ErrInvalidHandler)
	assert.ErrorIs(t, r.Register(DMReboot, "", noopApp), ErrInvalidHandler)
	assert.ErrorIs(t, r.Register(Kind(99), "", noopApp), ErrInvalidHandler)
	assert.ErrorIs(t, r.RegisterAction(Command, noopAction), ErrInvalidHandler)
	assert.ErrorIs(t, r.RegisterAction(DMReboot, nil), ErrInvalidHandler)
	assert.Equal(t, 0, r.Len())
}

func TestUnregister(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Command, "iot-2/cmd/restart/fmt/json", noopApp))
	require.NoError(t, r.Register(Commands, "", noopApp))
	require.NoError(t, r.RegisterAction(DMActions, noopAction))

	assert.True(t, r.Unregister("iot-2/cmd/restart/fmt/json"))
	assert.False(t, r.Unregister("iot-2/cmd/restart/fmt/json"))
	assert.False(t, r.Unregister(""))

	// Slots survive the index shift.
	e, ok := r.Lookup("iot-2/cmd/stop/fmt/json")
	require.True(t, ok)
	assert.Equal(t, Commands, e.Kind)

	assert.True(t, r.UnregisterKind(Commands))
	_, ok = r.Lookup("iot-2/cmd/stop/fmt/json")
	assert.False(t, ok)

	// The category is open again.
	require.NoError(t, r.Register(Command, "iot-2/cmd/stop/fmt/json", noopApp))

	assert.True(t, r.UnregisterKind(DMActions))
	require.NoError(t, r.RegisterAction(DMReboot, noopAction))
	assert.True(t, r.UnregisterKind(DMReboot))
	assert.Equal(t, 1, r.Len())
}

func TestKindHelpers(t *testing.T) {
	for k := DMResponse; k <= AppMonitoring; k++ {
		assert.NotEqual(t, "Unknown", k.String())
	}
	assert.Equal(t, "Unknown", Kind(0).String())

	k, ok := KindOf(topic.ActionFirmwareUpdate)
	require.True(t, ok)
	assert.Equal(t, DMFirmwareUpdate, k)

	_, ok = DMActions.Action()
	assert.False(t, ok)
	assert.True(t, DMActions.IsCatchAll())
	assert.True(t, Command.IsCommand())
	assert.False(t, Notification.IsAction())
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.Register(Command, "iot-2/cmd/restart/fmt/json", noopApp)
				r.Unregister("iot-2/cmd/restart/fmt/json")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Lookup("iot-2/cmd/restart/fmt/json")
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Len(), 1)
}
