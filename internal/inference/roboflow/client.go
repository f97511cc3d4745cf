package roboflow

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"eyescan-server/internal/domain/detection"
	"eyescan-server/internal/domain/image"
	"eyescan-server/internal/platform/errors"
	"eyescan-server/internal/utils"
)

const userAgent = "eyescan-server"

type Config struct {
	APIURL     string
	APIKey     string
	Timeout    time.Duration
	MaxSide    int
	Confidence float64
	Overlap    float64
	Logger     *utils.Logger
	// Transport overrides the HTTP round tripper, mainly for tests.
	Transport http.RoundTripper
}

// Client calls the hosted detection API. It never retries.
type Client struct {
	http       *resty.Client
	apiKey     string
	maxSide    int
	confidence float64
	overlap    float64
	logger     *utils.Logger
}

var _ detection.Inferer = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, fmt.Errorf("roboflow api url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.DefaultLogger
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", userAgent)
	if cfg.Transport != nil {
		httpClient.SetTransport(cfg.Transport)
	}

	return &Client{
		http:       httpClient,
		apiKey:     cfg.APIKey,
		maxSide:    cfg.MaxSide,
		confidence: cfg.Confidence,
		overlap:    cfg.Overlap,
		logger:     cfg.Logger,
	}, nil
}

// Infer uploads img to POST {api_url}/{modelID} and returns predictions in
// source image pixels.
func (c *Client) Infer(ctx context.Context, img *image.Decoded, modelID string) (*detection.InferenceResult, error) {
	if img == nil {
		return nil, errors.New(errors.KindInference, "roboflow.infer", "nil image")
	}
	modelID = strings.Trim(modelID, "/")
	if modelID == "" {
		return nil, errors.New(errors.KindInference, "roboflow.infer", "model id is empty")
	}

	upload, err := image.PrepareForInference(img, c.maxSide)
	if err != nil {
		return nil, errors.Wrap(errors.KindInference, "roboflow.prepare", "prepare upload", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetQueryParam("api_key", c.apiKey).
		SetBody(base64.StdEncoding.EncodeToString(upload.Bytes))
	if c.confidence > 0 {
		req.SetQueryParam("confidence", formatPercent(c.confidence))
	}
	if c.overlap > 0 {
		req.SetQueryParam("overlap", formatPercent(c.overlap))
	}

	start := time.Now()
	resp, err := req.Post("/" + modelID)
	if err != nil {
		return nil, errors.Wrap(errors.KindInference, "roboflow.request", "request failed", err)
	}

	c.logger.DebugTag("INFER", "model=%s status=%d upload=%dx%d bytes=%d elapsed=%s",
		modelID, resp.StatusCode(), upload.Width, upload.Height, len(upload.Bytes), time.Since(start))

	var body inferResponse
	decodeErr := sonic.Unmarshal(resp.Body(), &body)

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		detail := strings.TrimSpace(body.Message)
		if decodeErr != nil || detail == "" {
			detail = truncate(string(resp.Body()), 256)
		}
		return nil, errors.New(errors.KindInference, "roboflow.status",
			fmt.Sprintf("status %d: %s", resp.StatusCode(), detail))
	}
	if decodeErr != nil {
		return nil, errors.Wrap(errors.KindInference, "roboflow.decode", "decode response", decodeErr)
	}

	return toResult(&body, img, upload.Scale), nil
}

func toResult(body *inferResponse, img *image.Decoded, scale float64) *detection.InferenceResult {
	if scale <= 0 {
		scale = 1
	}

	result := &detection.InferenceResult{
		Predictions: make([]detection.Prediction, 0, len(body.Predictions)),
		ImageWidth:  img.Width,
		ImageHeight: img.Height,
		Time:        body.Time,
	}
	for _, p := range body.Predictions {
		result.Predictions = append(result.Predictions, detection.Prediction{
			Class:       p.Class,
			Confidence:  p.Confidence,
			X:           p.X * scale,
			Y:           p.Y * scale,
			Width:       p.Width * scale,
			Height:      p.Height * scale,
			ClassID:     p.ClassID,
			DetectionID: p.DetectionID,
		})
	}
	return result
}

// formatPercent converts a 0..1 threshold to the integer percentage the API
// expects; values above 1 are taken as percentages already.
func formatPercent(v float64) string {
	if v <= 1 {
		v *= 100
	}
	return strconv.Itoa(int(v + 0.5))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
