package sysex

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkRecorder records every write as a separate chunk.
type chunkRecorder struct {
	chunks [][]byte
	err    error
}

func (c *chunkRecorder) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.chunks = append(c.chunks, append([]byte(nil), p...))
	return len(p), nil
}

func testMessage(n int) []byte {
	payload := make([]byte, n-6)
	for i := range payload {
		payload[i] = byte(i % 0x70)
	}
	return Frame(TypeEditConfig, payload)
}

func TestFrame(t *testing.T) {
	assert.Equal(t, []byte{0xF0, 0x7D, 0x00, 0x00, 0x1F, 0xF7}, RequestConfig())
	assert.Equal(t, []byte{0xF0, 0x7D, 0x00, 0x00, 0x1A, 0xF7}, FactoryReset())
	assert.Equal(t, []byte{0xF0, 0x7D, 0x00, 0x00, 0x0F, 1, 2, 0xF7}, Frame(TypeConfigDump, []byte{1, 2}))

	edit := EditConfig(Identity{DeviceID: 5, Version: [3]byte{3, 0, 1}}, []byte{9, 8})
	assert.Equal(t, byte(TypeEditConfig), edit[TypeOffset])
	assert.Equal(t, []byte{9, 8}, edit[BlockOffset:BlockOffset+2])
}

func TestWriteChunked(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   []int
	}{
		{"short", 6, []int{6}},
		{"exact", 32, []int{16, 16}},
		{"tail", 55, []int{16, 16, 16, 7}},
		{"dump", 96, []int{16, 16, 16, 16, 16, 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := testMessage(tt.length)
			rec := &chunkRecorder{}
			require.NoError(t, WriteChunked(rec, frame, 16))

			var sizes []int
			var joined []byte
			for _, c := range rec.chunks {
				sizes = append(sizes, len(c))
				joined = append(joined, c...)
			}
			assert.Equal(t, tt.want, sizes)
			assert.Equal(t, frame, joined)
		})
	}
}

func TestWriteChunked_Error(t *testing.T) {
	boom := errors.New("boom")
	err := Send(&chunkRecorder{err: boom}, TypeRequestConfig, nil, 16)
	assert.ErrorIs(t, err, boom)
}

func TestReassembler_ChunkedMatchesWhole(t *testing.T) {
	msg := testMessage(55)

	whole := NewReassembler(DefaultBufferSize)
	require.Equal(t, Complete, whole.Feed(msg))
	want := append([]byte(nil), whole.Message()...)
	assert.Equal(t, msg, want)

	split := NewReassembler(DefaultBufferSize)
	assert.Equal(t, Partial, split.Feed(msg[0:16]))
	assert.Equal(t, Collecting, split.State())
	assert.Equal(t, Partial, split.Feed(msg[16:32]))
	assert.Equal(t, Partial, split.Feed(msg[32:48]))
	assert.Equal(t, Complete, split.Feed(msg[48:55]))
	assert.Equal(t, Idle, split.State())
	assert.Equal(t, want, split.Message())
}

func TestReassembler_IgnoresForeignTraffic(t *testing.T) {
	r := NewReassembler(DefaultBufferSize)
	assert.Equal(t, Ignored, r.Feed([]byte{0xB0, 32, 64}))
	assert.Equal(t, Ignored, r.Feed([]byte{0xF0, 0x41, 0x10, 0x42, 0xF7}))
	assert.Equal(t, Ignored, r.Feed([]byte{0xF0, 0x7D}))
	assert.Equal(t, Idle, r.State())
}

func TestReassembler_StopsAtTerminator(t *testing.T) {
	r := NewReassembler(DefaultBufferSize)
	status := r.Feed([]byte{0xF0, 0x7D, 0x00, 0x00, 0x1F, 0xF7, 0xB0, 0x01, 0x02})
	require.Equal(t, Complete, status)
	assert.Equal(t, RequestConfig(), r.Message())
}

func TestReassembler_Overflow(t *testing.T) {
	r := NewReassembler(32)

	msg := testMessage(40)
	assert.Equal(t, Partial, r.Feed(msg[:16]))
	assert.Equal(t, Partial, r.Feed(msg[16:32]))
	// the overflowing chunk carries the terminator
	assert.Equal(t, Overflow, r.Feed(msg[32:]))
	assert.Equal(t, Idle, r.State())

	// and the next message reassembles cleanly
	assert.Equal(t, Complete, r.Feed(FactoryReset()))
	assert.Equal(t, FactoryReset(), r.Message())
}

func TestReassembler_OverflowDiscardsTail(t *testing.T) {
	r := NewReassembler(32)
	filler := bytes.Repeat([]byte{0x01}, 16)

	assert.Equal(t, Partial, r.Feed(Header))
	assert.Equal(t, Partial, r.Feed(filler))
	assert.Equal(t, Overflow, r.Feed(filler))
	assert.Equal(t, Discarding, r.State())

	assert.Equal(t, Discarded, r.Feed(filler))
	assert.Equal(t, Ignored, r.Feed([]byte{0xF8}), "realtime passes through")
	assert.Equal(t, Discarding, r.State())
	assert.Equal(t, Discarded, r.Feed([]byte{0x01, 0x01, 0xF7}))
	assert.Equal(t, Idle, r.State())

	assert.Equal(t, Ignored, r.Feed([]byte{0x90, 0x40, 0x7F}))
	assert.Equal(t, Complete, r.Feed(FactoryReset()))
	assert.Equal(t, FactoryReset(), r.Message())
}

func TestReassembler_DiscardEndsOnNewMessage(t *testing.T) {
	r := NewReassembler(16)
	assert.Equal(t, Overflow, r.Feed(testMessage(40)[:20]))
	assert.Equal(t, Discarding, r.State())
	assert.Equal(t, Complete, r.Feed(RequestConfig()))
	assert.Equal(t, RequestConfig(), r.Message())

	assert.Equal(t, Overflow, r.Feed(testMessage(40)[:20]))
	assert.Equal(t, Ignored, r.Feed([]byte{0xB0, 1, 2}), "status byte ends the dropped message")
	assert.Equal(t, Idle, r.State())
}

func TestReassembler_ExactCapacity(t *testing.T) {
	r := NewReassembler(32)
	msg := testMessage(32)
	assert.Equal(t, Complete, r.Feed(msg))
	assert.Equal(t, msg, r.Message())
}

func TestParseConfigDump(t *testing.T) {
	block := bytes.Repeat([]byte{0x11}, 86)
	id := Identity{DeviceID: 5, Version: [3]byte{3, 0, 1}}
	msg := Frame(TypeConfigDump, ConfigDumpPayload(id, block))

	dump, err := ParseConfigDump(msg)
	require.NoError(t, err)
	assert.Equal(t, id, dump.Identity)
	assert.Equal(t, block, dump.Block)
	assert.Equal(t, "device 5, firmware 3.0.1", dump.String())

	_, err = ParseConfigDump(RequestConfig())
	assert.ErrorIs(t, err, ErrNotDump)

	_, err = ParseConfigDump([]byte{0xB0, 1, 2})
	assert.ErrorIs(t, err, ErrNotDump)

	_, err = ParseConfigDump([]byte{0xF0, 0x41, 0x10, 0x42, 0x0F, 1, 2, 3, 4, 0xF7})
	assert.ErrorIs(t, err, ErrNotDump)

	_, err = ParseConfigDump(Frame(TypeConfigDump, []byte{5, 3}))
	assert.ErrorIs(t, err, ErrNotDump)
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "request-config", TypeRequestConfig.String())
	assert.Equal(t, "unknown(0x42)", MessageType(0x42).String())
	assert.Equal(t, "collecting", Collecting.String())
	assert.Equal(t, "overflow", Overflow.String())
	assert.Equal(t, "discarded", Discarded.String())
	assert.Equal(t, "discarding", Discarding.String())
}
