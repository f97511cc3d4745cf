package image

import (
	"bytes"
	"encoding/base64"
	stdimage "image"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eyescan-server/internal/platform/config"
	"eyescan-server/internal/platform/errors"
	testhelpers "eyescan-server/internal/platform/testing"
)

func newTestPipeline(t *testing.T, mutate func(*config.SecurityConfig)) *Pipeline {
	t.Helper()
	cfg := testhelpers.SetupTestConfig(t)
	if mutate != nil {
		mutate(&cfg.Security)
	}
	p, err := NewPipeline(Options{Security: &cfg.Security, Logger: testhelpers.SetupTestLogger(t)})
	require.NoError(t, err)
	return p
}

func TestNewPipelineRequiresSecurityConfig(t *testing.T) {
	_, err := NewPipeline(Options{})
	require.Error(t, err)
}

func TestPipelineDecodeJPEG(t *testing.T) {
	p := newTestPipeline(t, nil)

	decoded, err := p.Decode(testhelpers.DataURI("image/jpeg", testhelpers.JPEGBytes(t, 32, 24)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", decoded.Format)
	assert.Equal(t, 32, decoded.Width)
	assert.Equal(t, 24, decoded.Height)
	assert.Equal(t, "image/jpeg", decoded.DeclaredMIME)
}

func TestPipelineDecodeIgnoresDeclaredMIME(t *testing.T) {
	p := newTestPipeline(t, nil)

	decoded, err := p.Decode(testhelpers.DataURI("image/jpeg", testhelpers.PNGBytes(t, 8, 8)))
	require.NoError(t, err)
	assert.Equal(t, "png", decoded.Format)
}

func TestPipelineDecodeFailures(t *testing.T) {
	p := newTestPipeline(t, nil)

	tests := []struct {
		name    string
		payload string
		message string
	}{
		{name: "no comma", payload: "not-a-data-uri", message: MsgInvalidImageData},
		{name: "bad base64", payload: "data:image/png;base64,@@@@", message: MsgInvalidImageData},
		{name: "second comma stays in data", payload: "data:image/png;base64," + base64.StdEncoding.EncodeToString(testhelpers.PNGBytes(t, 4, 4)) + ",trailer", message: MsgInvalidImageData},
		{name: "not an image", payload: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello world")), message: MsgUndecodableImage},
		{name: "executable", payload: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte{0x4D, 0x5A, 0x90, 0x00}), message: MsgUndecodableImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Decode(tt.payload)
			require.Error(t, err)
			var typed *errors.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, errors.KindDecode, typed.Kind)
			assert.Equal(t, tt.message, typed.Message)
		})
	}
}

func TestPipelineEnforcesLimits(t *testing.T) {
	raw := testhelpers.PNGBytes(t, 64, 64)

	p := newTestPipeline(t, func(s *config.SecurityConfig) { s.MaxWidth = 32 })
	_, err := p.Decode(testhelpers.DataURI("image/png", raw))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDecode))

	p = newTestPipeline(t, func(s *config.SecurityConfig) { s.MaxFileSize = 16 })
	_, err = p.Decode(testhelpers.DataURI("image/png", raw))
	require.Error(t, err)

	p = newTestPipeline(t, func(s *config.SecurityConfig) { s.AllowedFormats = []string{"jpeg"} })
	_, err = p.Decode(testhelpers.DataURI("image/png", raw))
	require.Error(t, err)
}

func TestPrepareForInferencePassesSmallJPEGThrough(t *testing.T) {
	raw := testhelpers.JPEGBytes(t, 40, 30)
	decoded, err := Decode(raw)
	require.NoError(t, err)

	upload, err := PrepareForInference(decoded, 2048)
	require.NoError(t, err)
	assert.Equal(t, raw, upload.Bytes)
	assert.Equal(t, 1.0, upload.Scale)
	assert.Equal(t, 40, upload.Width)
}

func TestPrepareForInferenceDownscales(t *testing.T) {
	decoded, err := Decode(testhelpers.PNGBytes(t, 200, 100))
	require.NoError(t, err)

	upload, err := PrepareForInference(decoded, 50)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", upload.Format)
	assert.Equal(t, 50, upload.Width)
	assert.Equal(t, 25, upload.Height)
	assert.InDelta(t, 4.0, upload.Scale, 1e-9)

	cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(upload.Bytes))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 50, cfg.Width)
}

func TestPrepareForInferenceReencodesGIF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, testhelpers.SolidImage(10, 10), nil))
	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "gif", decoded.Format)

	upload, err := PrepareForInference(decoded, 0)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", upload.Format)
	assert.Equal(t, 1.0, upload.Scale)
}
