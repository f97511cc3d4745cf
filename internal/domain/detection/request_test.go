package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		image interface{}
	}{
		{name: "string image", body: `{"image":"data:image/png;base64,AAAA"}`, image: "data:image/png;base64,AAAA"},
		{name: "extra fields ignored", body: `{"image":"a,b","question":"x"}`, image: "a,b"},
		{name: "null image", body: `{"image":null}`, image: nil},
		{name: "missing image", body: `{"picture":"a,b"}`, image: nil},
		{name: "numeric image", body: `{"image":7}`, image: float64(7)},
		{name: "array body", body: `["a,b"]`, image: nil},
		{name: "not json", body: `image=a,b`, image: nil},
		{name: "empty", body: ``, image: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := DecodeRequest("id-1", []byte(tt.body))
			assert.Equal(t, "id-1", req.ID)
			assert.Equal(t, tt.image, req.Image)
		})
	}
}
