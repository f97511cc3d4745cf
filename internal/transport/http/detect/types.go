package detect

import (
	"context"

	"eyescan-server/internal/domain/detection"
)

// Request documents the POST /detect body.
type Request struct {
	Image string `json:"image" example:"data:image/jpeg;base64,/9j/4AAQ..."`
}

// Detector is the adapter behind the handlers; *detection.Service implements it.
type Detector interface {
	Detect(ctx context.Context, req detection.Request) (*detection.Result, error)
	ModelID() string
	Policy() detection.Policy
}

// MsgPayloadTooLarge is returned when the body exceeds the configured limit.
const MsgPayloadTooLarge = "Payload too large"
