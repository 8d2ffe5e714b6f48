// Package router dispatches inbound messages to registered handlers.
package router

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tinayla696/iotp_client_golang/module/registry"
	"github.com/tinayla696/iotp_client_golang/module/topic"
)

var (
	// ErrHandlerNotFound is returned when no handler matches the topic.
	ErrHandlerNotFound = errors.New("router: handler not found")

	// ErrInvalidHandlerType is returned when the matching entry cannot
	// receive application messages.
	ErrInvalidHandlerType = errors.New("router: invalid handler type")

	// ErrNotManaged is returned for management messages arriving at a
	// client without management state.
	ErrNotManaged = errors.New("router: client is not managed")
)

type (
	// Handlers finds the entry registered for a topic.
	Handlers interface {
		Lookup(name string) (registry.Entry, bool)
	}

	// Manager processes device management messages.
	Manager interface {
		Handle(name string, payload []byte) error
	}

	// Router holds no state of its own.
	Router struct {
		handlers Handlers
		manager  Manager
	}
)

// New returns a router over handlers. manager may be nil for clients
// that are not managed.
func New(handlers Handlers, manager Manager) *Router {
	return &Router{handlers: handlers, manager: manager}
}

// Route delivers one message. Application handlers run synchronously on
// the calling goroutine, exactly once per message.
func (r *Router) Route(name string, payload []byte) error {
	if topic.IsAction(name) {
		if r.manager == nil {
			return fmt.Errorf("%w: %s", ErrNotManaged, name)
		}
		return r.manager.Handle(name, payload)
	}

	e, ok := r.handlers.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}
	if e.Kind < registry.Commands || e.App == nil {
		return fmt.Errorf("%w: %s for %s", ErrInvalidHandlerType, e.Kind, name)
	}

	t, err := topic.Parse(name)
	if err != nil {
		return err
	}

	id := t.DeviceID
	if t.Class == topic.ClassAppMonitoring {
		id = t.AppID
	}
	e.App(t.TypeID, id, t.Name, t.Format, payload)
	return nil
}

// OnMessage is the transport callback. Errors are logged and the message
// is dropped; a panicking handler does not take the transport down.
func (r *Router) OnMessage(name string, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.S().Errorf("Handler panicked on %s: %v", name, rec)
		}
	}()

	err := r.Route(name, payload)
	switch {
	case err == nil:
		zap.S().Debugf("Routed message: topic=%s size=%d", name, len(payload))
	case errors.Is(err, ErrHandlerNotFound):
		zap.S().Warnf("Dropped message: %v", err)
	default:
		zap.S().Errorf("Failed to route message on %s: %v", name, err)
	}
}
