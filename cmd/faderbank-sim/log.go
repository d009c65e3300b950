package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/16n-faderbank/16next-firmware/pkg/bus"
	"github.com/16n-faderbank/16next-firmware/pkg/control"
	"github.com/16n-faderbank/16next-firmware/pkg/sample"
	"github.com/16n-faderbank/16next-firmware/pkg/store"
	"github.com/16n-faderbank/16next-firmware/pkg/transport"
)

var logger = slog.Default()

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// startLogger logs to stderr and, when file is set, to a rotated log file.
// The returned closer flushes the file.
func startLogger(file, level string, debug bool) (*slog.Logger, io.Closer) {
	lvl := parseLevel(level)
	if debug {
		lvl = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if file != "" {
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 4,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, lj)
		closer = lj
	}

	l := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl}))
	logger = l
	control.SetLogger(l)
	store.SetLogger(l)
	bus.SetLogger(l)
	transport.SetLogger(l)
	sample.SetLogger(l)
	return l, closer
}
