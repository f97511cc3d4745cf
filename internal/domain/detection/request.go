package detection

import (
	"github.com/bytedance/sonic"
)

// DecodeRequest extracts the "image" field from a JSON body. Bodies that are
// not a JSON object yield a Request without an image.
func DecodeRequest(id string, body []byte) Request {
	var fields map[string]interface{}
	if err := sonic.Unmarshal(body, &fields); err != nil || fields == nil {
		return Request{ID: id}
	}
	return Request{ID: id, Image: fields["image"]}
}
