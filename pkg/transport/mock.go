package transport

import (
	"sync"
)

// Mock is an in-memory link. Writes are recorded and, when the mock is one
// end of a pipe, delivered to the other end.
type Mock struct {
	bufSize int

	mu        sync.RWMutex
	chunks    chan []byte
	connected bool
	written   []byte
	noRecord  bool
	peer      *Mock
}

// NewMock returns an unconnected mock with no peer.
func NewMock(bufSize int) *Mock {
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	return &Mock{bufSize: bufSize, chunks: make(chan []byte, bufSize)}
}

// NewPipe returns two mocks wired back to back.
func NewPipe(bufSize int) (*Mock, *Mock) {
	a, b := NewMock(bufSize), NewMock(bufSize)
	a.peer, b.peer = b, a
	return a, b
}

// Connect marks the mock connected.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// Close disconnects the mock and closes its chunks channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}
	m.connected = false
	close(m.chunks)
	return nil
}

// Chunks returns the channel of received chunks.
func (m *Mock) Chunks() <-chan []byte { return m.chunks }

// IsConnected reports whether Connect was called.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Write records p and forwards a copy to the peer.
func (m *Mock) Write(p []byte) (int, error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return 0, ErrNotConnected
	}
	if !m.noRecord {
		m.written = append(m.written, p...)
	}
	peer := m.peer
	m.mu.Unlock()

	if peer != nil {
		peer.Inject(p)
	}
	return len(p), nil
}

// Inject delivers p as a received chunk. It is dropped when the mock is not
// connected or its buffer is full.
func (m *Mock) Inject(p []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return
	}
	select {
	case m.chunks <- append([]byte(nil), p...):
	default:
		logger.Warn("mock chunks channel full, dropping data", "bytes", len(p))
	}
}

// Written returns a copy of everything written so far.
func (m *Mock) Written() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.written...)
}

// Record turns recording of writes on or off. Long-running pipes turn it
// off so the record does not grow without bound.
func (m *Mock) Record(on bool) {
	m.mu.Lock()
	m.noRecord = !on
	m.mu.Unlock()
}

// Reset forgets recorded writes.
func (m *Mock) Reset() {
	m.mu.Lock()
	m.written = nil
	m.mu.Unlock()
}
