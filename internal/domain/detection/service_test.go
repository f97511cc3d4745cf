package detection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eyescan-server/internal/domain/eventbus"
	"eyescan-server/internal/domain/image"
	"eyescan-server/internal/platform/config"
	"eyescan-server/internal/platform/errors"
	testhelpers "eyescan-server/internal/platform/testing"
)

type stubInferer struct {
	calls  atomic.Int32
	result *InferenceResult
	err    error
}

func (s *stubInferer) Infer(ctx context.Context, img *image.Decoded, modelID string) (*InferenceResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	args   []interface{}
}

func (p *recordingPublisher) Publish(topic string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	if len(args) > 0 {
		p.args = append(p.args, args[0])
	}
}

func (p *recordingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T, inferer Inferer, policy Policy, events eventbus.Publisher) *Service {
	t.Helper()
	cfg := testhelpers.SetupTestConfig(t)
	logger := testhelpers.SetupTestLogger(t)

	pipeline, err := image.NewPipeline(image.Options{Security: &cfg.Security, Logger: logger})
	require.NoError(t, err)

	svc, err := NewService(Options{
		Inferer:   inferer,
		Decoder:   pipeline,
		ModelID:   cfg.Inference.ModelID,
		Whitelist: NewClassWhitelist(config.DefaultClasses...),
		Policy:    policy,
		Events:    events,
		Logger:    logger,
	})
	require.NoError(t, err)
	return svc
}

func validPayload(t *testing.T) string {
	return testhelpers.DataURI("image/jpeg", testhelpers.JPEGBytes(t, 64, 48))
}

func twoPredictions() *InferenceResult {
	return &InferenceResult{
		Predictions: []Prediction{
			{Class: "cataract", Confidence: 0.91, X: 10, Y: 20, Width: 30, Height: 40},
			{Class: "pinkeye", Confidence: 0.55, X: 1, Y: 2, Width: 3, Height: 4},
		},
	}
}

func TestNewServiceValidation(t *testing.T) {
	stub := &stubInferer{}
	pipeline := &image.Pipeline{}

	_, err := NewService(Options{Decoder: pipeline, ModelID: "m", Whitelist: NewClassWhitelist("a")})
	assert.Error(t, err)

	_, err = NewService(Options{Inferer: stub, ModelID: "m", Whitelist: NewClassWhitelist("a")})
	assert.Error(t, err)

	_, err = NewService(Options{Inferer: stub, Decoder: pipeline, Whitelist: NewClassWhitelist("a")})
	assert.Error(t, err)

	_, err = NewService(Options{Inferer: stub, Decoder: pipeline, ModelID: "m", Policy: "strict"})
	assert.Error(t, err)

	_, err = NewService(Options{Inferer: stub, Decoder: pipeline, ModelID: "m", Policy: PolicyWhitelist})
	assert.Error(t, err)

	svc, err := NewService(Options{Inferer: stub, Decoder: pipeline, ModelID: "m", Policy: PolicyPassthrough})
	require.NoError(t, err)
	assert.Equal(t, PolicyPassthrough, svc.Policy())
}

func TestDetectMissingImage(t *testing.T) {
	stub := &stubInferer{result: twoPredictions()}
	events := &recordingPublisher{}
	svc := newTestService(t, stub, PolicyWhitelist, events)

	_, err := svc.Detect(context.Background(), Request{ID: "r1"})
	require.Error(t, err)

	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errors.KindValidation, typed.Kind)
	assert.Equal(t, MsgNoImage, typed.Message)
	assert.Zero(t, stub.calls.Load())
	assert.Equal(t, 1, events.count(eventbus.EventDetectionFailed))
}

func TestDetectClientInputFailuresNeverCallInference(t *testing.T) {
	stub := &stubInferer{result: twoPredictions()}
	svc := newTestService(t, stub, PolicyWhitelist, nil)

	tests := []struct {
		name    string
		image   interface{}
		message string
	}{
		{name: "no comma", image: "abcdef", message: image.MsgInvalidImageData},
		{name: "bad base64", image: "data:image/jpeg;base64,***", message: image.MsgInvalidImageData},
		{name: "not a string", image: 42.0, message: image.MsgInvalidImageData},
		{name: "undecodable bytes", image: "x," + base64.StdEncoding.EncodeToString([]byte("definitely not pixels")), message: image.MsgUndecodableImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Detect(context.Background(), Request{Image: tt.image})
			require.Error(t, err)
			var typed *errors.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, errors.KindDecode, typed.Kind)
			assert.Equal(t, tt.message, typed.Message)
		})
	}
	assert.Zero(t, stub.calls.Load())
}

func TestDetectWhitelistFiltersUnknownClasses(t *testing.T) {
	stub := &stubInferer{result: twoPredictions()}
	events := &recordingPublisher{}
	svc := newTestService(t, stub, PolicyWhitelist, events)

	result, err := svc.Detect(context.Background(), Request{ID: "r2", Image: validPayload(t)})
	require.NoError(t, err)

	require.Equal(t, 1, result.Count)
	require.Len(t, result.Detections, 1)
	assert.Equal(t, Detection{
		Class:      "cataract",
		Confidence: 0.91,
		BBox:       BBox{X: 10, Y: 20, Width: 30, Height: 40},
	}, result.Detections[0])
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, 1, events.count(eventbus.EventUnexpectedClass))
	assert.Equal(t, 1, events.count(eventbus.EventDetectionCompleted))
}

func TestDetectPassthroughKeepsEveryPrediction(t *testing.T) {
	stub := &stubInferer{result: twoPredictions()}
	events := &recordingPublisher{}
	svc := newTestService(t, stub, PolicyPassthrough, events)

	result, err := svc.Detect(context.Background(), Request{Image: validPayload(t)})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, "pinkeye", result.Detections[1].Class)
	assert.Zero(t, events.count(eventbus.EventUnexpectedClass))
}

func TestDetectEmptyPredictionsSerialiseAsArray(t *testing.T) {
	for _, inferred := range []*InferenceResult{{}, nil} {
		stub := &stubInferer{result: inferred}
		svc := newTestService(t, stub, PolicyWhitelist, nil)

		result, err := svc.Detect(context.Background(), Request{Image: validPayload(t)})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Count)

		body, err := json.Marshal(result)
		require.NoError(t, err)
		assert.JSONEq(t, `{"detections":[],"count":0}`, string(body))
	}
}

func TestDetectInferenceFailure(t *testing.T) {
	stub := &stubInferer{err: stderrors.New("upstream 503")}
	events := &recordingPublisher{}
	svc := newTestService(t, stub, PolicyWhitelist, events)

	result, err := svc.Detect(context.Background(), Request{Image: validPayload(t)})
	require.Error(t, err)
	assert.Nil(t, result)

	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errors.KindInference, typed.Kind)
	assert.Equal(t, MsgInferenceFailed, typed.Message)
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, 1, events.count(eventbus.EventDetectionFailed))
	assert.Zero(t, events.count(eventbus.EventDetectionCompleted))
}

func TestDetectInferenceFailureKeepsInferenceKind(t *testing.T) {
	stub := &stubInferer{err: errors.New(errors.KindDecode, "roboflow.decode", "bad body")}
	svc := newTestService(t, stub, PolicyWhitelist, nil)

	_, err := svc.Detect(context.Background(), Request{Image: validPayload(t)})
	assert.True(t, errors.IsKind(err, errors.KindInference))
}

func TestDetectIsIdempotent(t *testing.T) {
	stub := &stubInferer{result: twoPredictions()}
	svc := newTestService(t, stub, PolicyWhitelist, nil)
	payload := validPayload(t)

	first, err := svc.Detect(context.Background(), Request{Image: payload})
	require.NoError(t, err)
	second, err := svc.Detect(context.Background(), Request{Image: payload})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestDetectAppliesTimeout(t *testing.T) {
	var sawDeadline atomic.Bool
	inferer := inferFunc(func(ctx context.Context) (*InferenceResult, error) {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		return &InferenceResult{}, nil
	})

	cfg := testhelpers.SetupTestConfig(t)
	pipeline, err := image.NewPipeline(image.Options{Security: &cfg.Security})
	require.NoError(t, err)
	svc, err := NewService(Options{
		Inferer:   inferer,
		Decoder:   pipeline,
		ModelID:   "m/1",
		Whitelist: NewClassWhitelist("cataract"),
		Timeout:   cfg.Inference.Timeout,
	})
	require.NoError(t, err)

	_, err = svc.Detect(context.Background(), Request{Image: validPayload(t)})
	require.NoError(t, err)
	assert.True(t, sawDeadline.Load())
}

type inferFunc func(ctx context.Context) (*InferenceResult, error)

func (f inferFunc) Infer(ctx context.Context, _ *image.Decoded, _ string) (*InferenceResult, error) {
	return f(ctx)
}
