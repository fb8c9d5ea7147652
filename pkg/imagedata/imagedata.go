// Package imagedata decodes "data:image/...;base64," payloads.
package imagedata

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Image is a decoded blob plus its declared content type.
type Image struct {
	Data        []byte
	ContentType string
}

// Decode returns nil, never an error, when payload is not a well-formed
// image data URI. The sniffed type of the bytes must be an image as well.
func Decode(payload string) *Image {
	if !strings.HasPrefix(payload, "data:image/") {
		return nil
	}

	header, body, ok := strings.Cut(payload, ";base64,")
	if !ok || body == "" {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil
	}

	if !strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
		return nil
	}

	return &Image{
		Data:        data,
		ContentType: strings.TrimPrefix(header, "data:"),
	}
}
