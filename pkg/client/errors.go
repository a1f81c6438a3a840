package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sternrassler/tagpages/pkg/store"
)

// maxSnippetLen bounds DeserializationError.Snippet, in runes.
const maxSnippetLen = 120

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when the single retry also failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during the retry delay.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorKind classifies a page failure.
type ErrorKind string

const (
	// KindTransport covers connection errors, timeouts and non-2xx responses.
	KindTransport ErrorKind = "transport"

	// KindDeserialization covers bodies that are not a well-formed page.
	KindDeserialization ErrorKind = "deserialization"

	// KindEmpty covers well-formed pages without tags.
	KindEmpty ErrorKind = "empty"

	// KindArtifactExists covers write-once conflicts in the page store.
	KindArtifactExists ErrorKind = "artifact_exists"

	// KindCancelled covers context cancellation.
	KindCancelled ErrorKind = "cancelled"

	// KindUnknown is anything else.
	KindUnknown ErrorKind = "unknown"
)

// TransportError is a network or HTTP-layer failure.
type TransportError struct {
	Page       int
	StatusCode int // 0 when no response was received
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("page %d: transport error (status %d): %v", e.Page, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("page %d: transport error: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DeserializationError is returned when the body is not a valid page.
// Body holds the raw response for diagnostics.
type DeserializationError struct {
	Page int
	Body []byte
	Err  error
}

// Error implements the error interface.
func (e *DeserializationError) Error() string {
	return fmt.Sprintf("page %d: failed to deserialise %d byte body: %v", e.Page, len(e.Body), e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// Snippet returns a short printable excerpt of the body. HTML bodies, such
// as error pages served instead of JSON, are reduced to their title or text.
func (e *DeserializationError) Snippet() string {
	trimmed := bytes.TrimSpace(e.Body)
	text := string(trimmed)

	if bytes.HasPrefix(trimmed, []byte("<")) {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed)); err == nil {
			text = strings.TrimSpace(doc.Find("title").First().Text())
			if text == "" {
				text = strings.TrimSpace(doc.Find("body").Text())
			}
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > maxSnippetLen {
		text = string(runes[:maxSnippetLen]) + "..."
	}
	return text
}

// EmptyResultError is returned when the page decoded but has no tags.
type EmptyResultError struct {
	Page int
}

// Error implements the error interface.
func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("page %d: no tags found", e.Page)
}

// Classify maps an error to its ErrorKind.
func Classify(err error) ErrorKind {
	var (
		transportErr *TransportError
		decodeErr    *DeserializationError
		emptyErr     *EmptyResultError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &emptyErr):
		return KindEmpty
	case errors.As(err, &decodeErr):
		return KindDeserialization
	case errors.Is(err, store.ErrArtifactAlreadyExists):
		return KindArtifactExists
	case errors.Is(err, ErrContextCancelled),
		errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &transportErr):
		return KindTransport
	default:
		return KindUnknown
	}
}

// ShouldRetry determines if a failure of the given kind gets the one retry.
func ShouldRetry(kind ErrorKind) bool {
	switch kind {
	case KindTransport, KindDeserialization:
		return true
	default:
		// Empty pages are a stable condition, write conflicts and
		// cancellation are terminal.
		return false
	}
}
