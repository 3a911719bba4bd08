package domain

// Subscription is a live stream of typed events from a provider. The
// producer closes Stream on disconnect; Unsubscribe releases the underlying
// topic.
type Subscription[T any] struct {
	Stream      chan T
	Unsubscribe func()
	Topic       string
}
