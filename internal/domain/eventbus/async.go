package eventbus

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"eyescan-server/internal/utils"
)

// AsyncEventBus delivers events on a small worker pool so publishers never
// wait on subscribers.
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Int64
	logger    *utils.Logger
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

func NewAsyncEventBus(workerNum int) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 4
	}

	return &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, 1000),
		stopChan:  make(chan struct{}),
		logger:    utils.DefaultLogger,
	}
}

// SetLogger replaces the logger used for dropped events and subscriber panics.
func (aeb *AsyncEventBus) SetLogger(logger *utils.Logger) {
	if logger != nil {
		aeb.logger = logger
	}
}

func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop is safe to call more than once. Events still queued are discarded.
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		close(aeb.stopChan)
	})
	aeb.wg.Wait()
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			return
		case event := <-aeb.workChan:
			aeb.deliver(event)
		}
	}
}

func (aeb *AsyncEventBus) deliver(event asyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			aeb.logger.ErrorTag("DETECT", "event subscriber panicked: topic=%s err=%v", event.topic, r)
		}
	}()
	aeb.bus.Publish(event.topic, event.args...)
}

// Publish delivers synchronously on the caller's goroutine.
func (aeb *AsyncEventBus) Publish(topic string, args ...interface{}) {
	aeb.bus.Publish(topic, args...)
}

// PublishAsync queues the event; when the queue is full the event is dropped.
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		if n := aeb.dropped.Add(1); n == 1 || n%100 == 0 {
			aeb.logger.WarnTag("DETECT", "event queue full, dropped %d events (last topic=%s)", n, topic)
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (aeb *AsyncEventBus) Dropped() int64 {
	return aeb.dropped.Load()
}

// Publisher returns a Publisher that queues instead of delivering inline.
func (aeb *AsyncEventBus) Publisher() Publisher {
	return asyncPublisher{aeb}
}

type asyncPublisher struct {
	bus *AsyncEventBus
}

func (p asyncPublisher) Publish(topic string, args ...interface{}) {
	p.bus.PublishAsync(topic, args...)
}

func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

