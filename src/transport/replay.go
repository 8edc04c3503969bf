package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"serialpha/src/helpers"
	"serialpha/src/interfaces"
	"serialpha/src/logger"
	"serialpha/src/models"
)

const defaultReplayChunk = 16

// -----------------------------------------------------------------------------

// ReplayOpener streams a captured instrument log instead of a live port.
// Chunks are deliberately small so record boundaries fall mid-chunk.
type ReplayOpener struct {
	Path      string
	ChunkSize int
	Delay     time.Duration
	logger    *logger.Logger
}

func NewReplayOpener(path string, chunkSize int, delay time.Duration) *ReplayOpener {
	if chunkSize <= 0 {
		chunkSize = defaultReplayChunk
	}
	return &ReplayOpener{Path: path, ChunkSize: chunkSize, Delay: delay, logger: logger.NewLogger(nil, "Replay")}
}

// Open ignores port; the replay file stands in for it.
func (o *ReplayOpener) Open(ctx context.Context, p models.MProfile, port string) (interfaces.ITransport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	decoder, err := NewStreamDecoder(p.Serial.Encoding)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(o.Path)
	if err != nil {
		return nil, helpers.NewTransportError(fmt.Sprintf("failed to open replay file %s", o.Path), err, false)
	}
	o.logger.Info("Replaying %s for profile %q", o.Path, p.Name)
	return NewReaderTransport(f, o.Path, o.ChunkSize, o.Delay, decoder), nil
}

// -----------------------------------------------------------------------------

// ReaderTransport adapts any io.Reader into a transport. The end of the
// reader is reported as EndOfStream, not as an error.
type ReaderTransport struct {
	r       *bufio.Reader
	closer  io.Closer
	name    string
	chunk   []byte
	delay   time.Duration
	decoder *StreamDecoder

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

func NewReaderTransport(r io.Reader, name string, chunkSize int, delay time.Duration, decoder *StreamDecoder) *ReaderTransport {
	if chunkSize <= 0 {
		chunkSize = defaultReplayChunk
	}
	t := &ReaderTransport{
		r:       bufio.NewReader(r),
		name:    name,
		chunk:   make([]byte, chunkSize),
		delay:   delay,
		decoder: decoder,
		done:    make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		t.closer = c
	}
	return t
}

func (t *ReaderTransport) Describe() string {
	return "replay " + t.name
}

// -----------------------------------------------------------------------------

func (t *ReaderTransport) Read(ctx context.Context) (models.MChunk, error) {
	if t.delay > 0 {
		timer := time.NewTimer(t.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.MChunk{}, ctx.Err()
		case <-t.done:
			return models.MChunk{}, ErrClosed
		case <-timer.C:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return models.MChunk{}, ctx.Err()
		case <-t.done:
			return models.MChunk{}, ErrClosed
		default:
		}

		n, err := t.r.Read(t.chunk)
		if n > 0 {
			text, derr := t.decoder.Decode(t.chunk[:n])
			if derr != nil {
				return models.MChunk{}, helpers.NewTransportError("failed to decode input", derr, false)
			}
			if text != "" {
				return models.MChunk{Data: text}, nil
			}
		}
		if errors.Is(err, io.EOF) {
			rest, _ := t.decoder.Flush()
			return models.MChunk{Data: rest, EndOfStream: true}, nil
		}
		if err != nil {
			return models.MChunk{}, helpers.NewTransportError("replay read failed", err, true)
		}
	}
}

// -----------------------------------------------------------------------------

func (t *ReaderTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
