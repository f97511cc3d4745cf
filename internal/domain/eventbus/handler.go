package eventbus

import (
	"fmt"

	"eyescan-server/internal/utils"
)

// Subscriber is the subscription side of evbus.Bus and *AsyncEventBus.
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
}

// EventHandler logs detection events.
type EventHandler struct {
	logger *utils.Logger
}

func NewEventHandler(logger *utils.Logger) *EventHandler {
	if logger == nil {
		logger = utils.DefaultLogger
	}
	return &EventHandler{logger: logger}
}

func (h *EventHandler) HandleCompleted(data DetectionEventData) {
	h.logger.InfoTag("DETECT", "completed: request=%s model=%s count=%d dropped=%d duration=%s",
		data.RequestID, data.ModelID, data.Count, data.Dropped, data.Duration)
}

func (h *EventHandler) HandleUnexpectedClass(data UnexpectedClassEventData) {
	h.logger.WarnTag("DETECT", "unexpected class: request=%s class=%q confidence=%.3f",
		data.RequestID, data.Class, data.Confidence)
}

func (h *EventHandler) HandleFailed(data FailureEventData) {
	h.logger.WarnTag("DETECT", "failed: request=%s kind=%s message=%q",
		data.RequestID, data.Kind, data.Message)
}

// SetupEventHandlers subscribes the logging handler to every detection topic on bus.
func SetupEventHandlers(bus Subscriber, logger *utils.Logger) error {
	handler := NewEventHandler(logger)

	subscriptions := map[string]interface{}{
		EventDetectionCompleted: handler.HandleCompleted,
		EventUnexpectedClass:    handler.HandleUnexpectedClass,
		EventDetectionFailed:    handler.HandleFailed,
	}
	for topic, fn := range subscriptions {
		if err := bus.Subscribe(topic, fn); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}
