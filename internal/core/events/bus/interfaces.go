package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus used to fan simulator
// diagnostics out to loggers, telemetry streams and tests.
//
// - Handlers subscribe by Event.Type(), optionally inside a topic.
// - Delivery is synchronous, in the publisher's goroutine, in subscription order.
// - Handler errors are joined and returned from Publish.
// - Metrics are collected only while at least one observer is registered.
type EventBus interface {
	Publish(event Event) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is a no-op.
	Unsubscribe(Subscription) error

	// PublishWithFilters drops the event silently if any filter rejects it.
	PublishWithFilters(event Event, filters ...EventFilter) error
	PublishBatch(events ...Event) error

	CreateTopic(name string) error
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	PublishToTopic(topic string, event Event) error

	// HasSubscribers reports whether publishing eventType on the default topic would reach anyone.
	HasSubscribers(eventType string) bool

	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	GetMetrics() Metrics
	GetTopics() []TopicInfo
}

// Event is an immutable message. Timestamp is wall-clock time of creation;
// simulation time, when relevant, travels in Data.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

type (
	EventHandler func(event Event) error
	EventFilter  func(event Event) bool
)

type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// Observer is notified about deliveries. Implementations should return quickly.
type Observer interface {
	OnPublish(topic, eventType string, event Event)
	OnDelivered(topic, eventType string, handlers int, err error, duration time.Duration)
}

type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
	SubscribersActive uint64
	Topics            uint64
}

type TopicInfo struct {
	Name       string
	EventTypes int
	Subs       int
}
