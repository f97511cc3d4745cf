package image

import (
	"bytes"
	"fmt"
	stdimage "image"

	"github.com/disintegration/imaging"

	"eyescan-server/internal/platform/config"
	"eyescan-server/internal/platform/errors"
	"eyescan-server/internal/utils"
)

// Pipeline turns a data-URI payload into a validated, decoded image.
type Pipeline struct {
	validator *SecurityValidator
	logger    *utils.Logger
}

// Options configures the pipeline behaviour.
type Options struct {
	Security *config.SecurityConfig
	Logger   *utils.Logger
}

// NewPipeline constructs an image pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Security == nil {
		return nil, fmt.Errorf("security config is required")
	}
	if opts.Logger == nil {
		opts.Logger = utils.DefaultLogger
	}

	return &Pipeline{
		validator: NewSecurityValidator(opts.Security, opts.Logger),
		logger:    opts.Logger,
	}, nil
}

// Decode splits, base64-decodes, validates and decodes payload. Every failure
// is a KindDecode error whose Message is safe to return to the caller.
func (p *Pipeline) Decode(payload string) (*Decoded, error) {
	meta, data, err := SplitDataURI(payload)
	if err != nil {
		return nil, err
	}

	raw, err := DecodeBase64(data)
	if err != nil {
		p.logger.WarnTag("IMAGE", "base64 decode failed: %v", err)
		return nil, err
	}

	validation := p.validator.ValidateBytes(raw)
	if !validation.IsValid {
		p.logger.WarnTag("IMAGE", "image rejected: %v", validation.Error)
		return nil, &errors.Error{
			Kind:    errors.KindDecode,
			Op:      "image.validate",
			Message: MsgUndecodableImage,
			Cause:   validation.Error,
		}
	}

	decoded, err := Decode(raw)
	if err != nil {
		p.logger.WarnTag("IMAGE", "image decode failed: %v", err)
		return nil, err
	}
	decoded.DeclaredMIME = MIMEFromMeta(meta)
	return decoded, nil
}

// Decode materialises raw into a pixel buffer. The result always has
// positive width and height.
func Decode(raw []byte) (*Decoded, error) {
	img, format, err := stdimage.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &errors.Error{
			Kind:    errors.KindDecode,
			Op:      "image.decode",
			Message: MsgUndecodableImage,
			Cause:   err,
		}
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New(errors.KindDecode, "image.decode", MsgUndecodableImage)
	}

	return &Decoded{
		Image:  img,
		Bytes:  raw,
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// PrepareForInference returns the bytes to upload. JPEG and PNG sources that
// fit within maxSide are sent unchanged; anything else is re-encoded as JPEG,
// downscaled so its longest edge is maxSide when needed.
func PrepareForInference(d *Decoded, maxSide int) (*Upload, error) {
	fits := maxSide <= 0 || (d.Width <= maxSide && d.Height <= maxSide)
	if fits && (d.Format == "jpeg" || d.Format == "png") {
		return &Upload{
			Bytes:  d.Bytes,
			Format: d.Format,
			Width:  d.Width,
			Height: d.Height,
			Scale:  1,
		}, nil
	}

	img := d.Image
	if !fits {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	b := img.Bounds()
	return &Upload{
		Bytes:  buf.Bytes(),
		Format: "jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
		Scale:  float64(d.Width) / float64(b.Dx()),
	}, nil
}
