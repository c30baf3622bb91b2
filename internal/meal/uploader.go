package meal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/zombor/calorie-scan/internal/analysis"
)

// ErrTooLarge is returned when an upload exceeds the configured size limit
var ErrTooLarge = errors.New("file is too large")

// DefaultMaxUpload is the upload limit when none is configured
const DefaultMaxUpload = 20 << 20 // 20MB

// Source is how the user handed over a file
type Source string

const (
	SourceDrop   Source = "drop"
	SourcePicker Source = "picker"
)

// ParseSource maps a form value to a Source, defaulting to the file picker
func ParseSource(value string) Source {
	if strings.EqualFold(strings.TrimSpace(value), string(SourceDrop)) {
		return SourceDrop
	}
	return SourcePicker
}

// File is a raw file handed to the uploader
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Selection is the outcome of handing a file to the uploader.
// Accepted is false when a drop was silently ignored.
type Selection struct {
	Accepted     bool
	ImageDataURL string
}

// Uploader turns user-supplied files into displayable data URLs. It does no network I/O.
type Uploader struct {
	maxSize int64
}

// NewUploader creates an Uploader with a size limit in bytes
func NewUploader(maxSize int64) *Uploader {
	if maxSize <= 0 {
		maxSize = DefaultMaxUpload
	}
	return &Uploader{maxSize: maxSize}
}

// declaredType is the MIME type the browser reported for the file
func declaredType(file File) string {
	return strings.ToLower(strings.TrimSpace(file.ContentType))
}

// decoderHint resolves the MIME type, falling back to the file extension
func decoderHint(file File) string {
	contentType := declaredType(file)
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(file.Name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// Accept reads a file and converts it into a JPEG data URL.
// Dropped files whose declared MIME type is not image/* are ignored without error,
// whatever their extension; the picker skips that check but the bytes must still
// decode as an image.
func (u *Uploader) Accept(source Source, file File) (Selection, error) {
	if source == SourceDrop && !strings.HasPrefix(declaredType(file), "image/") {
		slog.Debug("Ignoring dropped non-image file", "filename", file.Name, "content_type", file.ContentType)
		return Selection{}, nil
	}

	contentType := decoderHint(file)

	if file.Size > u.maxSize {
		return Selection{}, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file.Body, u.maxSize+1))
	if err != nil {
		return Selection{}, fmt.Errorf("reading file: %w", err)
	}
	if int64(len(data)) > u.maxSize {
		return Selection{}, ErrTooLarge
	}

	jpegData, mediaType, converted, err := analysis.PrepareImage(data, contentType)
	if err != nil {
		return Selection{}, fmt.Errorf("preparing image: %w", err)
	}
	if converted {
		slog.Debug("Converted upload to JPEG", "filename", file.Name, "from", contentType, "size", len(jpegData))
	}

	return Selection{
		Accepted:     true,
		ImageDataURL: analysis.EncodeDataURL(mediaType, jpegData),
	}, nil
}
