package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Publisher is satisfied by evbus.Bus and by the queueing side of AsyncEventBus.
type Publisher interface {
	Publish(topic string, args ...interface{})
}

// New returns a synchronous bus. Subscribers run on the publishing goroutine.
func New() evbus.Bus {
	return evbus.New()
}
