// Package tags defines the response shape of one tag-listing page.
package tags

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TagRecord is a single tag entry of a page.
type TagRecord struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Type      int    `json:"type"`
	Ambiguous int    `json:"ambiguous"`
}

// Attributes holds the paging attributes echoed by the API.
type Attributes struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// PageResult is one decoded page.
type PageResult struct {
	Attributes Attributes  `json:"@attributes"`
	Tags       []TagRecord `json:"tag"`
}

// IsEmpty reports whether the page carries no tags.
func (p *PageResult) IsEmpty() bool {
	return p == nil || len(p.Tags) == 0
}

// Decode parses a raw response body.
//
// A literal JSON null decodes to (nil, nil); callers treat that the same as
// an empty page. Field names match case-insensitively.
func Decode(body []byte) (*PageResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode page: empty body")
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var page PageResult
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &page, nil
}
