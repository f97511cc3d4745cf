package image

import (
	stdimage "image"
)

// User-facing messages for rejected payloads.
const (
	MsgInvalidImageData = "Invalid image data"
	MsgUndecodableImage = "Could not decode image"
)

// Decoded is a request-owned pixel buffer together with the bytes it came from.
type Decoded struct {
	Image  stdimage.Image
	Bytes  []byte
	Format string
	Width  int
	Height int
	// DeclaredMIME is the media type named in the data URI metadata, if any.
	DeclaredMIME string
}

// Upload is the encoded form of a Decoded image sent to the inference service.
type Upload struct {
	Bytes  []byte
	Format string
	Width  int
	Height int
	// Scale converts uploaded pixel coordinates back to source pixels.
	Scale float64
}

// ValidationResult captures the outcome of security validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}
