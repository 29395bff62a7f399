// Package publisher streams lifecycle notifications and audit events to
// Kafka. Listeners run on the engine's goroutine, so events are queued and a
// background worker does the network I/O.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"warden/internal/platform/kafka"
	"warden/internal/punishment/models"
	"warden/internal/punishment/ports"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/circuit"
)

const (
	EventCreated = "punishment.created"
	EventRemoved = "punishment.removed"

	defaultQueueSize   = 1024
	defaultSendTimeout = 5 * time.Second
)

// Sink is the transport the worker writes to. *kafka.Producer satisfies it.
type Sink interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Event is the JSON body of a lifecycle message. The raw address never
// leaves the process; consumers get the correlation hash only.
type Event struct {
	Event         string      `json:"event"`
	InternalID    string      `json:"internal_id"`
	UUID          string      `json:"uuid"`
	IPHash        string      `json:"ip_hash,omitempty"`
	Type          models.Type `json:"type"`
	Reason        string      `json:"reason"`
	Actor         string      `json:"actor"`
	StartTime     time.Time   `json:"start_time"`
	EndTime       *time.Time  `json:"end_time,omitempty"`
	Active        bool        `json:"active"`
	Silent        bool        `json:"silent"`
	RemovalReason string      `json:"removal_reason,omitempty"`
}

// Publisher implements ports.Listener and ports.AuditPublisher.
type Publisher struct {
	sink        Sink
	topic       string
	auditTopic  string
	logger      *slog.Logger
	breaker     *circuit.Breaker
	sendTimeout time.Duration
	queue       chan kafka.Message

	dropped   int64
	droppedMu sync.Mutex
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithTopics sets the lifecycle and audit topics. A blank audit topic turns
// Emit into a no-op.
func WithTopics(events, audit string) Option {
	return func(p *Publisher) {
		p.topic = events
		p.auditTopic = audit
	}
}

func WithQueueSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan kafka.Message, n)
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		if b != nil {
			p.breaker = b
		}
	}
}

func WithSendTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.sendTimeout = d
		}
	}
}

func New(sink Sink, opts ...Option) (*Publisher, error) {
	if sink == nil {
		return nil, errors.New("publisher sink is required")
	}
	p := &Publisher{
		sink:        sink,
		topic:       "warden.punishments",
		auditTopic:  "warden.audit",
		logger:      slog.Default(),
		breaker:     circuit.New("kafka"),
		sendTimeout: defaultSendTimeout,
		queue:       make(chan kafka.Message, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

var _ ports.Listener = (*Publisher)(nil)
var _ ports.AuditPublisher = (*Publisher)(nil)

func (p *Publisher) OnCreate(ctx context.Context, ev ports.CreateEvent) {
	p.enqueueLifecycle(ctx, EventCreated, ev.Record, "")
}

func (p *Publisher) OnRemove(ctx context.Context, ev ports.RemoveEvent) {
	p.enqueueLifecycle(ctx, EventRemoved, ev.Record, ev.Reason)
}

// Emit queues an audit event. It only fails when the event cannot be encoded.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.auditTopic == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	p.enqueue(ctx, kafka.Message{
		Topic:   p.auditTopic,
		Key:     []byte(event.Subject),
		Value:   body,
		Headers: map[string]string{"event": event.Action, "category": string(event.Category)},
	})
	return nil
}

func (p *Publisher) enqueueLifecycle(ctx context.Context, name string, rec models.Record, removalReason string) {
	body, err := json.Marshal(toEvent(name, rec, removalReason))
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode punishment event", "internal_id", rec.InternalID, "error", err)
		return
	}
	p.enqueue(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(rec.InternalID),
		Value:   body,
		Headers: map[string]string{"event": name},
	})
}

func (p *Publisher) enqueue(ctx context.Context, msg kafka.Message) {
	select {
	case p.queue <- msg:
	default:
		p.droppedMu.Lock()
		p.dropped++
		p.droppedMu.Unlock()
		p.logger.WarnContext(ctx, "event queue full, dropping message",
			"topic", msg.Topic,
			"key", string(msg.Key),
		)
	}
}

// Dropped reports how many messages were discarded because the queue was full.
func (p *Publisher) Dropped() int64 {
	p.droppedMu.Lock()
	defer p.droppedMu.Unlock()
	return p.dropped
}

// Run drains the queue until ctx is done, then flushes what is already
// queued with a fresh deadline.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return ctx.Err()
		case msg := <-p.queue:
			p.send(ctx, msg)
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), p.sendTimeout)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.send(ctx, msg)
		default:
			return
		}
	}
}

// send writes one message. While the breaker is open the message is still
// attempted, and is also written to the log so it is never silently lost.
func (p *Publisher) send(ctx context.Context, msg kafka.Message) {
	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	if err := p.sink.Publish(sendCtx, msg); err != nil {
		useFallback, change := p.breaker.RecordFailure()
		if change.Opened {
			p.logger.Warn("kafka circuit opened, logging events locally", "breaker", p.breaker.Name())
		}
		p.logger.Warn("failed to publish event", "topic", msg.Topic, "key", string(msg.Key), "error", err)
		if useFallback {
			p.logFallback(msg)
		}
		return
	}
	usePrimary, change := p.breaker.RecordSuccess()
	if change.Closed {
		p.logger.Info("kafka circuit closed", "breaker", p.breaker.Name())
	}
	if !usePrimary {
		p.logFallback(msg)
	}
}

func (p *Publisher) logFallback(msg kafka.Message) {
	p.logger.Info("event",
		"topic", msg.Topic,
		"key", string(msg.Key),
		"payload", string(msg.Value),
		"log_type", "event_fallback",
	)
}

func toEvent(name string, rec models.Record, removalReason string) Event {
	return Event{
		Event:         name,
		InternalID:    rec.InternalID,
		UUID:          rec.UUID.String(),
		IPHash:        rec.IPHash,
		Type:          rec.Type,
		Reason:        rec.Reason,
		Actor:         rec.Actor,
		StartTime:     rec.StartTime,
		EndTime:       rec.EndTime,
		Active:        rec.Active,
		Silent:        rec.Silent,
		RemovalReason: removalReason,
	}
}
