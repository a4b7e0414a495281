package consumer

import (
	"context"
	"log/slog"
)

// Router dispatches messages to handlers registered per topic. Messages for
// topics with no handler go to the fallback, or are skipped with a warning.
type Router struct {
	handlers map[string]TopicHandler
	fallback TopicHandler
	logger   *slog.Logger
}

// NewRouter returns an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		handlers: make(map[string]TopicHandler),
		logger:   logger,
	}
}

// Register installs a handler for a topic, replacing any previous one.
func (r *Router) Register(topic string, h TopicHandler) {
	r.handlers[topic] = h
}

// SetFallback installs a handler for topics with no registered handler.
func (r *Router) SetFallback(h TopicHandler) {
	r.fallback = h
}

// Topics returns the registered topic names.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	return topics
}

func (r *Router) Handle(ctx context.Context, msg *Message) error {
	if h, ok := r.handlers[msg.Topic]; ok {
		return h.Handle(ctx, msg)
	}
	if r.fallback != nil {
		return r.fallback.Handle(ctx, msg)
	}
	r.logger.Warn("no handler registered for topic, skipping message",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	return nil
}
