package llmclient

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrInvalidJSON = errors.New("invalid json from model")

// Part is one element of a multimodal request: either text or inline bytes.
type Part struct {
	Text string
	Data []byte
	MIME string
}

func TextPart(s string) Part { return Part{Text: s} }

func BlobPart(mime string, b []byte) Part { return Part{Data: b, MIME: mime} }

// Client generates structured JSON from a prompt plus optional media parts.
type Client interface {
	Name() string
	Close() error
	GenerateJSON(ctx context.Context, prompt string, parts []Part) (json.RawMessage, error)
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
