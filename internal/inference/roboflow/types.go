package roboflow

import (
	"bytes"
	"strconv"
)

// inferResponse mirrors the hosted object-detection response body.
type inferResponse struct {
	Time        float64          `json:"time"`
	Image       imageInfo        `json:"image"`
	Predictions []wirePrediction `json:"predictions"`
	// Message is set on error responses.
	Message string `json:"message"`
}

type imageInfo struct {
	Width  flexNumber `json:"width"`
	Height flexNumber `json:"height"`
}

type wirePrediction struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Confidence  float64 `json:"confidence"`
	Class       string  `json:"class"`
	ClassID     int     `json:"class_id"`
	DetectionID string  `json:"detection_id"`
}

// flexNumber accepts both 640 and "640"; older model versions quote image sizes.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*n = flexNumber(v)
	return nil
}
