package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"serialpha/src/helpers"
	"serialpha/src/interfaces"
	"serialpha/src/logger"
	"serialpha/src/models"

	"go.bug.st/serial"
)

// DefaultReadTimeout bounds a single port read so cancellation is noticed.
const DefaultReadTimeout = 200 * time.Millisecond

const readBufferSize = 4096

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("transport closed")

// -----------------------------------------------------------------------------

// ListPorts returns the serial ports visible to the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, helpers.NewTransportError("failed to enumerate serial ports", err, false)
	}
	slices.Sort(ports)
	return ports, nil
}

// -----------------------------------------------------------------------------

// ModeFor maps profile serial settings onto a port mode.
func ModeFor(s models.MSerialSettings) (*serial.Mode, error) {
	if s.BaudRate <= 0 {
		return nil, helpers.NewConfigurationError("invalid baud rate %d", s.BaudRate)
	}
	mode := &serial.Mode{BaudRate: s.BaudRate, DataBits: s.DataBits}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	switch strings.ToLower(s.Parity) {
	case "", "none":
		mode.Parity = serial.NoParity
	case "even":
		mode.Parity = serial.EvenParity
	case "odd":
		mode.Parity = serial.OddParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		return nil, helpers.NewConfigurationError("invalid parity %q", s.Parity)
	}

	switch s.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, helpers.NewConfigurationError("invalid stop bits %d", s.StopBits)
	}
	return mode, nil
}

// -----------------------------------------------------------------------------

// SerialOpener opens real serial ports.
type SerialOpener struct {
	ReadTimeout time.Duration
	logger      *logger.Logger
}

func NewSerialOpener(readTimeout time.Duration) *SerialOpener {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &SerialOpener{ReadTimeout: readTimeout, logger: logger.NewLogger(nil, "Serial")}
}

// Open opens port with the profile settings. An empty port picks the first one listed.
func (o *SerialOpener) Open(ctx context.Context, p models.MProfile, port string) (interfaces.ITransport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode, err := ModeFor(p.Serial)
	if err != nil {
		return nil, err
	}
	decoder, err := NewStreamDecoder(p.Serial.Encoding)
	if err != nil {
		return nil, err
	}

	if port == "" {
		ports, err := ListPorts()
		if err != nil {
			return nil, err
		}
		if len(ports) == 0 {
			return nil, helpers.NewTransportError("no serial port available", nil, false)
		}
		port = ports[0]
	}

	sp, err := serial.Open(port, mode)
	if err != nil {
		return nil, helpers.NewTransportError(fmt.Sprintf("failed to open %s", port), err, false)
	}
	if err := sp.SetReadTimeout(o.ReadTimeout); err != nil {
		sp.Close()
		return nil, helpers.NewTransportError(fmt.Sprintf("failed to set read timeout on %s", port), err, false)
	}

	t := &serialTransport{
		port:    sp,
		name:    port,
		mode:    mode,
		decoder: decoder,
		logger:  o.logger,
	}
	o.logger.Info("Opened %s", t.Describe())
	return t, nil
}

// -----------------------------------------------------------------------------

type serialTransport struct {
	port    serial.Port
	name    string
	mode    *serial.Mode
	decoder *StreamDecoder
	logger  *logger.Logger

	closeOnce sync.Once
	closed    atomic.Bool
	buf       [readBufferSize]byte
}

func (t *serialTransport) Describe() string {
	return fmt.Sprintf("%s @ %d baud, %d data bits, %s", t.name, t.mode.BaudRate, t.mode.DataBits, t.decoder.Name())
}

// -----------------------------------------------------------------------------

func (t *serialTransport) Read(ctx context.Context) (models.MChunk, error) {
	for {
		if err := ctx.Err(); err != nil {
			return models.MChunk{}, err
		}
		if t.closed.Load() {
			return models.MChunk{}, ErrClosed
		}

		n, err := t.port.Read(t.buf[:])
		if err != nil {
			if t.closed.Load() {
				return models.MChunk{}, ErrClosed
			}
			return models.MChunk{}, t.classify(err)
		}
		if n == 0 {
			// read timeout
			continue
		}

		text, err := t.decoder.Decode(t.buf[:n])
		if err != nil {
			return models.MChunk{}, helpers.NewTransportError("failed to decode input", err, false)
		}
		if text == "" {
			continue
		}
		return models.MChunk{Data: text}, nil
	}
}

// classify marks an error hard when the device is gone or the port is unusable.
func (t *serialTransport) classify(err error) error {
	var pe *serial.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case serial.PortClosed, serial.PortNotFound:
			return helpers.NewTransportError(fmt.Sprintf("port %s lost", t.name), err, true)
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return helpers.NewTransportError(fmt.Sprintf("port %s lost", t.name), err, true)
	}

	if ports, lerr := serial.GetPortsList(); lerr == nil && !slices.Contains(ports, t.name) {
		return helpers.NewTransportError(fmt.Sprintf("port %s disappeared", t.name), err, true)
	}
	return helpers.NewTransportError(fmt.Sprintf("read error on %s", t.name), err, false)
}

// -----------------------------------------------------------------------------

func (t *serialTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		err = t.port.Close()
		t.logger.Info("Closed %s", t.name)
	})
	return err
}
