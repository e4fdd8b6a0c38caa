package scanning

import (
	"context"
	"errors"
)

var (
	// ErrDocumentDecode is returned when a PDF cannot be rendered or an image cannot be decoded
	ErrDocumentDecode = errors.New("document decode error")

	// ErrService is returned when the model service answers with a non-success status
	ErrService = errors.New("service error")

	// ErrMalformedResponse is returned when the model reply is not a JSON object, even after repair
	ErrMalformedResponse = errors.New("malformed response")
)

// Scanner defines the interface for the vision model services that read a receipt
type Scanner interface {
	// Scan sends the prompt and the base64 JPEG to the model and returns the parsed reply fields
	Scan(ctx context.Context, prompt string, encodedImage string) (Fields, error)
	// Close closes the scanner and releases resources
	Close() error
}
