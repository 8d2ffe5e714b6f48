package task

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// EventPublisher publishes an event of the client itself.
type EventPublisher interface {
	PublishEvent(event, format string, data []byte, qos byte) error
}

// *--------------------------------------------------------------------------------------
// EventTask publishes Data as a JSON event.
type EventTask struct {
	Publisher EventPublisher
	Event     string
	Data      any
	QoS       byte
	ID        int
}

// *--------------------------------------------------------------------------------------
// Execute
func (t *EventTask) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(t.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", t.Event, err)
	}
	if err := t.Publisher.PublishEvent(t.Event, "json", payload, t.QoS); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", t.Event, err)
	}
	zap.S().Debugf("Executed %s: %s", t, payload)
	return nil
}

// *--------------------------------------------------------------------------------------
// String
func (t *EventTask) String() string {
	return fmt.Sprintf("EventTask{Event: %s, ID: %d}", t.Event, t.ID)
}

// *--------------------------------------------------------------------------------------
// Type
func (t *EventTask) Type() TaskType {
	return EventTaskType
}
