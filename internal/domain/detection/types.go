package detection

import (
	"context"

	"eyescan-server/internal/domain/image"
)

// User-facing messages for failures raised by the adapter itself.
const (
	MsgNoImage         = "No image provided"
	MsgInferenceFailed = "Inference failed"
)

// Prediction is one raw detection reported by the inference service.
// X and Y are the box center; all values are in source image pixels.
type Prediction struct {
	Class       string  `json:"class"`
	Confidence  float64 `json:"confidence"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	ClassID     int     `json:"class_id"`
	DetectionID string  `json:"detection_id"`
}

// InferenceResult is the decoded collaborator response.
type InferenceResult struct {
	Predictions []Prediction
	ImageWidth  int
	ImageHeight int
	// Time is the server-side inference time in seconds, when reported.
	Time float64
}

// Inferer runs remote object detection. Implementations must be safe for
// concurrent use.
type Inferer interface {
	Infer(ctx context.Context, img *image.Decoded, modelID string) (*InferenceResult, error)
}

type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Result is the response body of a successful detection. Count always equals
// len(Detections) and Detections is never nil.
type Result struct {
	Detections []Detection `json:"detections"`
	Count      int         `json:"count"`
}

// Request carries one decoded request body. Image holds the raw JSON value of
// the "image" field; nil means the field was absent or null.
type Request struct {
	ID    string
	Image interface{}
}
