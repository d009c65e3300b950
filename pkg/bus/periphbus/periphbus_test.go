package periphbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/16n-faderbank/16next-firmware/pkg/bus"
	"github.com/16n-faderbank/16next-firmware/pkg/config"
)

type tx struct {
	addr uint16
	w    []byte
	rLen int
}

type fakeBus struct {
	txs     []tx
	present map[uint16]bool
}

func (f *fakeBus) String() string { return "fake" }

func (f *fakeBus) SetSpeed(physic.Frequency) error { return nil }

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	f.txs = append(f.txs, tx{addr: addr, w: append([]byte(nil), w...), rLen: len(r)})
	if !f.present[addr] {
		return errors.New("nack")
	}
	for i := range r {
		r[i] = byte(i + 1)
	}
	return nil
}

func TestRegisters(t *testing.T) {
	fb := &fakeBus{present: map[uint16]bool{0x50: true}}
	b := New(fb)
	assert.Equal(t, "fake", b.String())

	buf := make([]byte, 2)
	require.NoError(t, b.ReadRegister(0x50, 0x10, buf))
	assert.Equal(t, []byte{1, 2}, buf)
	require.NoError(t, b.WriteRegister(0x50, 0x20, []byte{7, 8}))

	assert.Equal(t, []tx{
		{addr: 0x50, w: []byte{0x10}, rLen: 2},
		{addr: 0x50, w: []byte{0x20, 7, 8}},
	}, fb.txs)
	assert.NoError(t, b.Close())
}

func TestDrivesController(t *testing.T) {
	fb := &fakeBus{present: map[uint16]bool{0x31: true}}
	c := bus.NewController(New(fb), config.Default().Bus)

	assert.Equal(t, []uint16{0x31}, c.Probe())
	fb.txs = nil
	require.NoError(t, c.Send(3, 0x0102))
	assert.Equal(t, []tx{{addr: 0x31, w: []byte{0x11, 3, 0x01, 0x02}}}, fb.txs)
}
