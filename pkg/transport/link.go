// Package transport carries raw MIDI byte streams between the controller
// and a host: serial ports, in-memory pipes, USB-MIDI event packets and
// gomidi driver ports.
package transport

import (
	"errors"
	"log/slog"
)

// logger is the package logger. Defaults to slog.Default().
var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// DefaultBufferSize is the default size of the chunks channel.
const DefaultBufferSize = 100

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

// Link is a bidirectional MIDI byte stream (real or mocked).
//
// Chunks delivers received bytes in the pieces they arrived in; a chunk may
// hold several messages or part of one. The channel is closed by Close.
type Link interface {
	Connect() error
	Close() error
	Chunks() <-chan []byte
	Write(p []byte) (int, error)
	IsConnected() bool
}

var (
	_ Link = (*Serial)(nil)
	_ Link = (*Mock)(nil)
)
