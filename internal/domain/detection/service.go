package detection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eyescan-server/internal/domain/eventbus"
	"eyescan-server/internal/domain/image"
	"eyescan-server/internal/platform/errors"
	"eyescan-server/internal/platform/observability"
	"eyescan-server/internal/utils"
)

// Decoder turns an image payload into pixels; *image.Pipeline implements it.
type Decoder interface {
	Decode(payload string) (*image.Decoded, error)
}

type Options struct {
	Inferer   Inferer
	Decoder   Decoder
	ModelID   string
	Whitelist ClassWhitelist
	Policy    Policy
	// Timeout bounds the inference call; zero leaves it to the caller's context.
	Timeout time.Duration
	Events  eventbus.Publisher
	Logger  *utils.Logger
}

// Service validates a request, runs inference once and shapes the result.
// It keeps no per-request state.
type Service struct {
	inferer   Inferer
	decoder   Decoder
	modelID   string
	whitelist ClassWhitelist
	policy    Policy
	timeout   time.Duration
	events    eventbus.Publisher
	logger    *utils.Logger
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, ...interface{}) {}

func NewService(opts Options) (*Service, error) {
	if opts.Inferer == nil {
		return nil, fmt.Errorf("inferer is required")
	}
	if opts.Decoder == nil {
		return nil, fmt.Errorf("decoder is required")
	}
	if opts.ModelID == "" {
		return nil, fmt.Errorf("model id is required")
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	if policy == PolicyWhitelist && opts.Whitelist.Len() == 0 {
		return nil, fmt.Errorf("whitelist policy requires at least one class")
	}
	if opts.Events == nil {
		opts.Events = nopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = utils.DefaultLogger
	}

	return &Service{
		inferer:   opts.Inferer,
		decoder:   opts.Decoder,
		modelID:   opts.ModelID,
		whitelist: opts.Whitelist,
		policy:    policy,
		timeout:   opts.Timeout,
		events:    opts.Events,
		logger:    opts.Logger,
	}, nil
}

func (s *Service) ModelID() string { return s.modelID }

func (s *Service) Policy() Policy { return s.policy }

// Detect runs validate, decode, infer and filter in a single pass. Failures are
// *errors.Error values of kind validation, decode or inference whose Message is
// safe to return to the client.
func (s *Service) Detect(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if req.Image == nil {
		return nil, s.fail(req.ID, errors.New(errors.KindValidation, "detection.validate", MsgNoImage))
	}
	payload, ok := req.Image.(string)
	if !ok {
		return nil, s.fail(req.ID, errors.New(errors.KindDecode, "detection.validate", image.MsgInvalidImageData))
	}

	decoded, err := s.decoder.Decode(payload)
	if err != nil {
		return nil, s.fail(req.ID, errors.Wrap(errors.KindDecode, "detection.decode", image.MsgUndecodableImage, err))
	}

	inferred, err := s.infer(ctx, req.ID, decoded)
	if err != nil {
		s.logger.ErrorTag("INFER", "inference failed: request=%s model=%s err=%v", req.ID, s.modelID, err)
		return nil, s.fail(req.ID, &errors.Error{
			Kind:    errors.KindInference,
			Op:      "detection.infer",
			Message: MsgInferenceFailed,
			Cause:   err,
		})
	}

	result, dropped := s.shape(ctx, req.ID, inferred)

	s.events.Publish(eventbus.EventDetectionCompleted, eventbus.DetectionEventData{
		RequestID: req.ID,
		ModelID:   s.modelID,
		Count:     result.Count,
		Dropped:   dropped,
		Duration:  time.Since(start),
	})
	return result, nil
}

func (s *Service) infer(ctx context.Context, requestID string, decoded *image.Decoded) (*InferenceResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, end := observability.StartSpan(ctx, "detection", "infer",
		slog.String("request_id", requestID),
		slog.String("model", s.modelID),
	)
	result, err := s.inferer.Infer(ctx, decoded, s.modelID)
	end(err)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &InferenceResult{}
	}
	return result, nil
}

// shape applies the class policy and maps predictions to detections in
// collaborator order.
func (s *Service) shape(ctx context.Context, requestID string, inferred *InferenceResult) (*Result, int) {
	detections := make([]Detection, 0, len(inferred.Predictions))
	dropped := 0

	for _, p := range inferred.Predictions {
		if s.policy == PolicyWhitelist && !s.whitelist.Contains(p.Class) {
			dropped++
			s.logger.WarnTag("DETECT", "unexpected class detected: %q", p.Class)
			s.events.Publish(eventbus.EventUnexpectedClass, eventbus.UnexpectedClassEventData{
				RequestID:  requestID,
				Class:      p.Class,
				Confidence: p.Confidence,
			})
			continue
		}

		detections = append(detections, Detection{
			Class:      p.Class,
			Confidence: p.Confidence,
			BBox: BBox{
				X:      p.X,
				Y:      p.Y,
				Width:  p.Width,
				Height: p.Height,
			},
		})
	}

	if dropped > 0 {
		observability.RecordMetric(ctx, "detection.dropped", float64(dropped), map[string]string{
			"model": s.modelID,
		})
	}

	return &Result{Detections: detections, Count: len(detections)}, dropped
}

func (s *Service) fail(requestID string, err *errors.Error) error {
	s.events.Publish(eventbus.EventDetectionFailed, eventbus.FailureEventData{
		RequestID: requestID,
		Kind:      string(err.Kind),
		Message:   err.Message,
	})
	return err
}
