package service

import (
	"context"
	"runtime/debug"

	"warden/internal/punishment/models"
	"warden/internal/punishment/ports"
)

// RegisterListener appends l. Listeners are called in registration order.
func (s *Service) RegisterListener(l ports.Listener) {
	if l == nil {
		return
	}
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	next := make([]ports.Listener, len(s.listeners), len(s.listeners)+1)
	copy(next, s.listeners)
	s.listeners = append(next, l)
}

func (s *Service) currentListeners() []ports.Listener {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	return s.listeners
}

func (s *Service) notifyCreate(ctx context.Context, rec models.Record, origin string) {
	ev := ports.CreateEvent{Record: rec}
	for i, l := range s.currentListeners() {
		s.dispatch(ctx, i, "create", func() { l.OnCreate(ctx, ev) })
	}
	s.metrics.IncrementNotifications("create", origin)
}

func (s *Service) notifyRemove(ctx context.Context, rec models.Record, reason, origin string) {
	ev := ports.RemoveEvent{Record: rec, Reason: reason}
	for i, l := range s.currentListeners() {
		s.dispatch(ctx, i, "remove", func() { l.OnRemove(ctx, ev) })
	}
	s.metrics.IncrementNotifications("remove", origin)
}

// dispatch runs one listener callback. A panic is logged and does not reach
// the remaining listeners or the caller.
func (s *Service) dispatch(ctx context.Context, index int, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.IncrementListenerPanics()
			s.logger.ErrorContext(ctx, "punishment listener panicked",
				"listener", index,
				"kind", kind,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
