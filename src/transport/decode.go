package transport

import (
	"errors"
	"strings"
	"unicode/utf8"

	"serialpha/src/helpers"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DefaultEncoding is used when a profile names none.
const DefaultEncoding = "utf-8"

// -----------------------------------------------------------------------------

// StreamDecoder turns raw port bytes into text. Multi-byte sequences split
// across reads are held back until the rest arrives.
type StreamDecoder struct {
	name    string
	t       transform.Transformer
	pending []byte
}

// NewStreamDecoder resolves an encoding label such as "utf-8", "latin1" or "windows-1252".
func NewStreamDecoder(label string) (*StreamDecoder, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultEncoding
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, helpers.NewConfigurationError("unsupported encoding %q", label)
	}
	name, _ := htmlindex.Name(enc)
	return &StreamDecoder{name: name, t: enc.NewDecoder()}, nil
}

// -----------------------------------------------------------------------------

// Name returns the canonical encoding name.
func (d *StreamDecoder) Name() string {
	return d.name
}

// Decode converts b, keeping an incomplete trailing sequence for the next call.
func (d *StreamDecoder) Decode(b []byte) (string, error) {
	return d.transform(b, false)
}

// Flush decodes whatever is still held back. Invalid leftovers become U+FFFD.
func (d *StreamDecoder) Flush() (string, error) {
	return d.transform(nil, true)
}

func (d *StreamDecoder) transform(b []byte, atEOF bool) (string, error) {
	src := append(d.pending, b...)
	d.pending = nil
	if len(src) == 0 {
		return "", nil
	}

	dst := make([]byte, len(src)*3+utf8.UTFMax)
	nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		d.t.Reset()
		return "", err
	}
	if nSrc < len(src) {
		d.pending = append([]byte(nil), src[nSrc:]...)
	}
	return string(dst[:nDst]), nil
}
