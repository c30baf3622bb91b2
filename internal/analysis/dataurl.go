package analysis

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const defaultMediaType = "image/jpeg"

// EncodeDataURL builds a base64 data URL suitable for both preview and transmission
func EncodeDataURL(mediaType string, data []byte) string {
	if mediaType == "" {
		mediaType = defaultMediaType
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// splitDataURL returns the media type and the base64 payload of a data URL.
// Everything after the first comma is the payload; the media type falls back to image/jpeg.
func splitDataURL(dataURL string) (string, string, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || payload == "" {
		return "", "", ErrInvalidDataURL
	}

	mediaType := defaultMediaType
	if rest, found := strings.CutPrefix(header, "data:"); found {
		if mt, _, _ := strings.Cut(rest, ";"); mt != "" {
			mediaType = strings.ToLower(mt)
		}
	}

	return mediaType, payload, nil
}

// DecodeDataURL returns the media type and raw bytes of a base64 data URL
func DecodeDataURL(dataURL string) (string, []byte, error) {
	mediaType, payload, err := splitDataURL(dataURL)
	if err != nil {
		return "", nil, err
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}

	return mediaType, data, nil
}
