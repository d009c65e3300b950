package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the MIDI current loop rate used on the TRS jack.
	DefaultBaudRate = 31250
	readSize        = 64
)

// Port describes a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports lists the serial ports present on the host.
func Ports() ([]Port, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	result := make([]Port, 0, len(names))
	for _, name := range names {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Serial is a MIDI stream over a serial port.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	chunks    chan []byte
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// NewSerial returns an unconnected serial link. Zero values select the
// defaults.
func NewSerial(port string, baudRate, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		chunks:   make(chan []byte, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect opens the port and starts reading.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return ErrAlreadyConnected
	}

	conn, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}
	s.conn = conn
	s.connected = true

	go s.read()
	return nil
}

// Close stops reading and closes the port. The chunks channel is closed.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	s.cancel()

	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	s.connected = false
	close(s.chunks)
	return err
}

// Chunks returns the channel of received byte chunks.
func (s *Serial) Chunks() <-chan []byte { return s.chunks }

// Write sends raw MIDI bytes.
func (s *Serial) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return 0, ErrNotConnected
	}
	n, err := s.conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write to %s: %w", s.port, err)
	}
	return n, nil
}

// Drain waits until the output buffer is transmitted.
func (s *Serial) Drain() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return ErrNotConnected
	}
	return s.conn.Drain()
}

// IsConnected reports whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Serial) read() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in serial reader", "port", s.port, "panic", r)
		}
	}()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	buf := make([]byte, readSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && s.ctx.Err() == nil {
				logger.Error("serial read failed", "port", s.port, "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		chunk := append([]byte(nil), buf[:n]...)

		s.mu.RLock()
		if !s.connected {
			s.mu.RUnlock()
			return
		}
		select {
		case s.chunks <- chunk:
		default:
			logger.Warn("chunks channel full, dropping data", "port", s.port, "bytes", n)
		}
		s.mu.RUnlock()
	}
}
