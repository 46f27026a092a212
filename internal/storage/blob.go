// Package storage keeps evidence images outside the document store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the upload limit when none is configured.
const DefaultMaxBytes = 1_000_000

var (
	ErrEmpty           = errors.New("storage: empty upload")
	ErrTooLarge        = errors.New("storage: upload too large")
	ErrUnsupportedType = errors.New("storage: unsupported image type")
	ErrNotFound        = errors.New("storage: blob not found")
	ErrInvalidRef      = errors.New("storage: invalid blob reference")
)

var allowedImages = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Meta describes an upload.
type Meta struct {
	// Purpose prefixes the stored name, e.g. "issue" or "resolution".
	Purpose  string
	Filename string
}

// Image is a validated upload ready to be stored.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

// BlobStore stores evidence images and resolves them to public URLs.
type BlobStore interface {
	Put(ctx context.Context, img Image, meta Meta) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
}

// Inspect sniffs data and accepts JPEG, PNG and GIF images up to maxBytes.
func Inspect(data []byte, maxBytes int) (Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) == 0 {
		return Image{}, ErrEmpty
	}
	if len(data) > maxBytes {
		return Image{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), maxBytes)
	}

	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		if ext, ok := allowedImages[m.String()]; ok {
			return Image{Data: data, ContentType: m.String(), Extension: ext}, nil
		}
	}
	return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
}
