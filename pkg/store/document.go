package store

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"time"
)

// Document is a stored resource.
type Document struct {
	// ContentType is the media type the document was uploaded with
	ContentType string `json:"content_type"`

	// Data is the raw document content
	Data []byte `json:"data"`

	// UpdatedAt is when the document was last written
	UpdatedAt time.Time `json:"updated_at"`
}

// MediaType returns the lower-cased media type without parameters.
func (d *Document) MediaType() string {
	mt, _, err := mime.ParseMediaType(d.ContentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(d.ContentType))
	}
	return mt
}

// IsJSON reports whether the document holds JSON.
func (d *Document) IsJSON() bool {
	mt := d.MediaType()
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// IsText reports whether the document holds text.
func (d *Document) IsText() bool {
	return strings.HasPrefix(d.MediaType(), "text/")
}

// Payload decodes the document for a response: JSON documents become
// structured values, text documents strings, anything else raw bytes.
func (d *Document) Payload() (any, error) {
	switch {
	case d.IsJSON():
		var v any
		dec := codec.NewDecoder(bytes.NewReader(d.Data))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return v, nil
	case d.IsText():
		return string(d.Data), nil
	default:
		return d.Data, nil
	}
}
