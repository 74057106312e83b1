package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes every event to a slog.Logger. It wraps another
// publisher to also fan out events for WebSocket/API use.
type LogPublisher struct {
	inner  Publisher
	logger *slog.Logger
}

// LogPublisherOption configures a LogPublisher.
type LogPublisherOption func(*LogPublisher)

// WithInnerPublisher sets an inner publisher to fan out events to.
func WithInnerPublisher(p Publisher) LogPublisherOption {
	return func(l *LogPublisher) {
		l.inner = p
	}
}

// NewLogPublisher creates a publisher that logs events to logger.
func NewLogPublisher(logger *slog.Logger, opts ...LogPublisherOption) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &LogPublisher{logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish logs the event and fans out to the inner publisher.
func (p *LogPublisher) Publish(event Event) {
	if p.inner != nil {
		p.inner.Publish(event)
	}

	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("topic", event.Topic),
		slog.String("operation_id", event.OperationID),
	}
	if data, ok := event.Data.(ErrorData); ok {
		level = slog.LevelError
		attrs = append(attrs, slog.String("code", data.Code), slog.String("error", data.Message))
	}
	p.logger.LogAttrs(context.Background(), level, string(event.Type), attrs...)
}

// Subscribe delegates to inner publisher or returns closed channel.
func (p *LogPublisher) Subscribe(topic string) <-chan Event {
	if p.inner != nil {
		return p.inner.Subscribe(topic)
	}
	ch := make(chan Event)
	close(ch)
	return ch
}

// Unsubscribe delegates to inner publisher.
func (p *LogPublisher) Unsubscribe(topic string, ch <-chan Event) {
	if p.inner != nil {
		p.inner.Unsubscribe(topic, ch)
	}
}

// Close delegates to inner publisher.
func (p *LogPublisher) Close() {
	if p.inner != nil {
		p.inner.Close()
	}
}
