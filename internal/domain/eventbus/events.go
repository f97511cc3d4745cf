package eventbus

import "time"

// Detection topics.
const (
	EventDetectionCompleted = "detection:completed"
	EventUnexpectedClass    = "detection:unexpected-class"
	EventDetectionFailed    = "detection:failed"
)

type DetectionEventData struct {
	RequestID string        `json:"request_id"`
	ModelID   string        `json:"model_id"`
	Count     int           `json:"count"`
	Dropped   int           `json:"dropped"`
	Duration  time.Duration `json:"duration"`
}

type UnexpectedClassEventData struct {
	RequestID  string  `json:"request_id"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

type FailureEventData struct {
	RequestID string `json:"request_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}
