package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"warden/internal/platform/kafka"
	audit "warden/pkg/platform/audit"
)

// Materializer appends decoded audit events to a store.
type Materializer struct {
	store audit.Store
}

func NewMaterializer(store audit.Store) *Materializer {
	return &Materializer{store: store}
}

// Handle decodes msg as an audit.Event. Events without an action or timestamp
// are rejected.
func (m *Materializer) Handle(ctx context.Context, msg kafka.Message) error {
	var event audit.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("decode audit event: %w", err)
	}
	if event.Action == "" || event.Timestamp.IsZero() {
		return errors.New("audit event missing action or timestamp")
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if err := m.store.Append(ctx, event); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
