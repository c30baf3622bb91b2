package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"strings"

	"github.com/gen2brain/heic"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// ErrUnsupportedImage is returned when uploaded bytes do not decode as a supported image
var ErrUnsupportedImage = errors.New("unsupported image format")

const jpegQuality = 90

// isJPEGFormat checks for the JPEG SOI marker
func isJPEGFormat(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}

	// ftyp box at offset 4 with a HEIC-family brand
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heix" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}

	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// decodeImage decodes any supported format, HEIC included
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding HEIC/HEIF image: %v", ErrUnsupportedImage, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: supported formats are JPEG, PNG, GIF, WebP, HEIC: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

// imageToJPEG re-encodes an image as JPEG, flattening transparency onto white
func imageToJPEG(imageData []byte, mimeType string) ([]byte, error) {
	img, err := decodeImage(imageData, mimeType)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return buf.Bytes(), nil
}

// PrepareImage normalizes an uploaded image to JPEG.
// Returns the final image data, its MIME type, and whether conversion occurred.
func PrepareImage(imageData []byte, contentType string) ([]byte, string, bool, error) {
	if len(imageData) == 0 {
		return nil, "", false, fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	if isJPEGFormat(imageData) {
		if _, err := jpeg.Decode(bytes.NewReader(imageData)); err != nil {
			return nil, "", false, fmt.Errorf("%w: decoding JPEG image: %v", ErrUnsupportedImage, err)
		}
		return imageData, defaultMediaType, false, nil
	}

	jpegData, err := imageToJPEG(imageData, mimeType)
	if err != nil {
		return nil, "", false, err
	}

	return jpegData, defaultMediaType, true, nil
}
