package image

import (
	"encoding/base64"
	"strings"

	"eyescan-server/internal/platform/errors"
)

// SplitDataURI cuts payload on its first comma into metadata and base64 data,
// e.g. "data:image/jpeg;base64,/9j/4AAQ..." -> ("data:image/jpeg;base64", "/9j/4AAQ...").
func SplitDataURI(payload string) (meta, data string, err error) {
	meta, data, ok := strings.Cut(payload, ",")
	if !ok {
		return "", "", errors.New(errors.KindDecode, "image.split", MsgInvalidImageData)
	}
	return strings.TrimSpace(meta), data, nil
}

// MIMEFromMeta extracts "image/jpeg" from "data:image/jpeg;base64".
func MIMEFromMeta(meta string) string {
	meta = strings.TrimPrefix(strings.TrimSpace(meta), "data:")
	mime, _, _ := strings.Cut(meta, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}

// DecodeBase64 decodes standard-alphabet base64, padded or not. Embedded
// whitespace (line-wrapped payloads) is ignored.
func DecodeBase64(data string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, data)

	if cleaned == "" {
		return nil, errors.New(errors.KindDecode, "image.base64", MsgInvalidImageData)
	}

	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil && !strings.HasSuffix(cleaned, "=") {
		raw, err = base64.RawStdEncoding.DecodeString(cleaned)
	}
	if err != nil {
		return nil, &errors.Error{
			Kind:    errors.KindDecode,
			Op:      "image.base64",
			Message: MsgInvalidImageData,
			Cause:   err,
		}
	}
	if len(raw) == 0 {
		return nil, errors.New(errors.KindDecode, "image.base64", MsgInvalidImageData)
	}
	return raw, nil
}
