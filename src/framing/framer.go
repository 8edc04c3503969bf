package framing

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxBuffer bounds the bytes held while waiting for a terminator.
const DefaultMaxBuffer = 64 * 1024

// ErrBufferOverflow is returned when no terminator arrived within the buffer limit.
// The pending bytes are dropped; framing resumes with the next chunk.
var ErrBufferOverflow = errors.New("framer buffer overflow")

// -----------------------------------------------------------------------------

// Framer cuts a chunked character stream into records on a fixed terminator.
// The output does not depend on how the stream was split into chunks.
type Framer struct {
	terminator string
	maxBuffer  int
	buf        strings.Builder
}

// -----------------------------------------------------------------------------

// NewFramer creates a framer. maxBuffer <= 0 uses DefaultMaxBuffer.
func NewFramer(terminator string, maxBuffer int) (*Framer, error) {
	if terminator == "" {
		return nil, fmt.Errorf("line terminator cannot be empty")
	}
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Framer{terminator: terminator, maxBuffer: maxBuffer}, nil
}

// -----------------------------------------------------------------------------

// Feed appends chunk and returns every complete, non-empty, trimmed record.
// On overflow the records found so far are still returned with ErrBufferOverflow.
func (f *Framer) Feed(chunk string) ([]string, error) {
	f.buf.WriteString(chunk)
	pending := f.buf.String()

	var records []string
	for {
		idx := strings.Index(pending, f.terminator)
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(pending[:idx])
		pending = pending[idx+len(f.terminator):]
		if line != "" {
			records = append(records, line)
		}
	}

	f.buf.Reset()
	if len(pending) > f.maxBuffer {
		return records, fmt.Errorf("%w: %d bytes pending without %q", ErrBufferOverflow, len(pending), f.terminator)
	}
	f.buf.WriteString(pending)
	return records, nil
}

// -----------------------------------------------------------------------------

// Pending returns the bytes waiting for a terminator.
func (f *Framer) Pending() string {
	return f.buf.String()
}

// Reset drops any partial record.
func (f *Framer) Reset() {
	f.buf.Reset()
}
