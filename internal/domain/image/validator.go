package image

import (
	"bytes"
	"fmt"
	stdimage "image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"eyescan-server/internal/platform/config"
	"eyescan-server/internal/utils"
)

// SecurityValidator performs layered checks against decoded payload bytes
// before the full image is materialised.
type SecurityValidator struct {
	config *config.SecurityConfig
	logger *utils.Logger
}

// NewSecurityValidator constructs a new validator instance.
func NewSecurityValidator(cfg *config.SecurityConfig, logger *utils.Logger) *SecurityValidator {
	return &SecurityValidator{
		config: cfg,
		logger: logger,
	}
}

var suspiciousPrefixes = [][]byte{
	{0x4D, 0x5A},             // PE executable
	{0x7F, 0x45, 0x4C, 0x46}, // ELF
	{0x25, 0x50, 0x44, 0x46}, // PDF
	{0x50, 0x4B, 0x03, 0x04}, // zip
	{0x1F, 0x8B, 0x08},       // gzip
}

// ValidateBytes checks size, format, dimensions and (optionally) content of raw.
func (v *SecurityValidator) ValidateBytes(raw []byte) ValidationResult {
	result := ValidationResult{}

	if len(raw) == 0 {
		result.Error = fmt.Errorf("empty image payload")
		return result
	}

	if v.config.MaxFileSize > 0 && int64(len(raw)) > v.config.MaxFileSize {
		result.Error = fmt.Errorf("file size exceeds limit: %d bytes (max %d bytes)", len(raw), v.config.MaxFileSize)
		result.SecurityRisk = "file too large"
		v.logger.WarnTag("IMAGE", "oversized image: size=%d max_size=%d", len(raw), v.config.MaxFileSize)
		return result
	}

	if v.config.EnableDeepScan && v.scanForMaliciousContent(raw) {
		result.Error = fmt.Errorf("potential malicious content detected")
		result.SecurityRisk = "suspicious content"
		return result
	}

	cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Errorf("decode image config: %w", err)
		result.SecurityRisk = "corrupted image data"
		return result
	}
	result.Format = format

	if !v.isFormatAllowed(format) {
		result.Error = fmt.Errorf("unsupported format: %s", format)
		result.SecurityRisk = "unapproved format"
		return result
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		result.Error = fmt.Errorf("invalid dimensions: %dx%d", cfg.Width, cfg.Height)
		return result
	}

	if (v.config.MaxWidth > 0 && cfg.Width > v.config.MaxWidth) ||
		(v.config.MaxHeight > 0 && cfg.Height > v.config.MaxHeight) {
		result.Error = fmt.Errorf("dimensions exceed limit: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "dimensions too large"
		return result
	}

	totalPixels := int64(cfg.Width) * int64(cfg.Height)
	if v.config.MaxPixels > 0 && totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("pixel count exceeds limit: %d (max %d)", totalPixels, v.config.MaxPixels)
		result.SecurityRisk = "pixel count too high"
		return result
	}

	result.IsValid = true
	result.Width = cfg.Width
	result.Height = cfg.Height
	result.FileSize = int64(len(raw))

	v.logger.DebugTag("IMAGE", "validated: format=%s width=%d height=%d size=%d",
		result.Format, result.Width, result.Height, result.FileSize)

	return result
}

func (v *SecurityValidator) isFormatAllowed(format string) bool {
	if len(v.config.AllowedFormats) == 0 || format == "" {
		return true
	}
	format = strings.ToLower(format)
	for _, allowed := range v.config.AllowedFormats {
		if strings.ToLower(allowed) == format {
			return true
		}
	}
	return false
}

func (v *SecurityValidator) scanForMaliciousContent(raw []byte) bool {
	for _, signature := range suspiciousPrefixes {
		if bytes.HasPrefix(raw, signature) {
			v.logger.WarnTag("IMAGE", "rejected payload with signature %x", signature)
			return true
		}
	}

	head := raw[:min(len(raw), 1024)]
	if bytes.Contains(bytes.ToLower(head), []byte("<svg")) || bytes.Contains(bytes.ToLower(head), []byte("<script")) {
		v.logger.WarnTag("IMAGE", "rejected markup payload")
		return true
	}
	return false
}
