package ingestion_engine

import (
	"fmt"
	"io"
	"strings"

	"code.sajari.com/docconv"
)

// TextExtractor normalizes a stored document body to plain text. The body is
// streamed; large documents are never copied whole before conversion.
type TextExtractor interface {
	ExtractText(r io.Reader, contentType string) (string, error)
}

// DocconvExtractor converts PDFs, office documents and HTML to text via
// docconv. Plaintext bodies pass through untouched.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) ExtractText(r io.Reader, contentType string) (string, error) {
	if strings.HasPrefix(contentType, "text/") || contentType == "" {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read document body: %w", err)
		}
		return string(data), nil
	}

	res, err := docconv.Convert(r, contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv: extract %q: %w", contentType, err)
	}
	if res.Body == "" {
		return "", fmt.Errorf("docconv: extracted empty text for content type %q", contentType)
	}
	return res.Body, nil
}

var _ TextExtractor = (*DocconvExtractor)(nil)
