// Package media decides where submitted photos live. Photos arrive either
// as plain URLs or as data URIs captured on the device.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

// Store turns a submitted photo reference into the URL that gets persisted.
type Store interface {
	Resolve(ctx context.Context, photoURL string) (string, error)
}

// Inline keeps photo references exactly as submitted, data URIs included.
type Inline struct{}

func (Inline) Resolve(_ context.Context, photoURL string) (string, error) {
	return photoURL, nil
}

var ErrNotDataURI = errors.New("media: not a data URI")

// DataURI is a decoded data: URL.
type DataURI struct {
	MediaType string
	Data      []byte
}

func IsDataURI(value string) bool {
	return strings.HasPrefix(value, "data:")
}

// ParseDataURI decodes data:[<mediatype>][;base64],<data>.
func ParseDataURI(value string) (DataURI, error) {
	if !IsDataURI(value) {
		return DataURI{}, ErrNotDataURI
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(value, "data:"), ",")
	if !ok {
		return DataURI{}, fmt.Errorf("media: data URI has no payload")
	}

	isBase64 := false
	if strings.HasSuffix(header, ";base64") {
		isBase64 = true
		header = strings.TrimSuffix(header, ";base64")
	}

	mediaType := "text/plain"
	if header != "" {
		parsed, _, err := mime.ParseMediaType(header)
		if err != nil {
			return DataURI{}, fmt.Errorf("media: parse media type: %w", err)
		}
		mediaType = parsed
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return DataURI{}, fmt.Errorf("media: decode payload: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return DataURI{}, fmt.Errorf("media: decode payload: %w", err)
		}
		data = []byte(unescaped)
	}
	return DataURI{MediaType: mediaType, Data: data}, nil
}

// Extension returns a file extension for the media type, "bin" when unknown.
func (d DataURI) Extension() string {
	switch d.MediaType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	}
	return "bin"
}
