package settings

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomBlock returns a well formed block: flags are 0/1 and every data
// byte is 7-bit.
func randomBlock(rng *rand.Rand) []byte {
	b := make([]byte, BlockLength)
	for _, off := range []int{offPowerLED, offMIDILED, offRotated, offBusController, offThru} {
		b[off] = byte(rng.Intn(2))
	}
	for i := offFaderMin; i < offThru; i++ {
		b[i] = byte(rng.Intn(128))
	}
	for i := offReserved; i < offUSBChannels; i++ {
		b[i] = byte(rng.Intn(128))
	}
	for i := 0; i < Channels; i++ {
		b[offUSBChannels+i] = byte(1 + rng.Intn(16))
		b[offTRSChannels+i] = byte(1 + rng.Intn(16))
		b[offUSBCCs+i] = byte(rng.Intn(128))
		b[offTRSCCs+i] = byte(rng.Intn(128))
	}
	for _, off := range []int{offUSBHighRes, offTRSHighRes} {
		b[off] = byte(rng.Intn(128))
		b[off+1] = byte(rng.Intn(128))
		b[off+2] = byte(rng.Intn(4))
	}
	return b
}

func TestDefault(t *testing.T) {
	s := Default()

	assert.False(t, s.PowerLED)
	assert.True(t, s.MIDILED)
	assert.False(t, s.Rotated)
	assert.False(t, s.BusController)
	assert.False(t, s.MIDIThru)
	for i := 0; i < Channels; i++ {
		assert.Equal(t, uint8(1), s.USBChannel[i])
		assert.Equal(t, uint8(1), s.TRSChannel[i])
		assert.Equal(t, uint8(32+i), s.USBCC[i])
		assert.Equal(t, uint8(32+i), s.TRSCC[i])
		assert.False(t, s.USBHighRes[i])
		assert.False(t, s.TRSHighRes[i])
	}
	assert.Equal(t, DefaultBlock(), s.Encode())
}

func TestDefaultBlock_IsCopy(t *testing.T) {
	b := DefaultBlock()
	b[0] = 0x55
	assert.Equal(t, byte(0), DefaultBlock()[0])
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		block := randomBlock(rng)
		s, err := Decode(block)
		require.NoError(t, err)
		require.Equal(t, block, s.Encode())

		again, err := Decode(s.Encode())
		require.NoError(t, err)
		require.Equal(t, s, again)
	}
}

func TestDecode_Legacy(t *testing.T) {
	block := DefaultBlock()[:LegacyBlockLength]
	block[offRotated] = 1

	s, err := Decode(block)
	require.NoError(t, err)
	assert.True(t, s.Rotated)
	assert.Equal(t, [Channels]bool{}, s.USBHighRes)
	assert.Len(t, s.Encode(), BlockLength)
}

func TestDecode_Short(t *testing.T) {
	_, err := Decode(make([]byte, 40))
	assert.Error(t, err)
}

func TestHighResPacking(t *testing.T) {
	var s Settings
	s.USBHighRes[0] = true
	s.USBHighRes[7] = true
	s.USBHighRes[15] = true
	s.TRSHighRes[14] = true

	b := s.Encode()
	assert.Equal(t, []byte{0x01, 0x01, 0x02}, b[offUSBHighRes:offUSBHighRes+3])
	assert.Equal(t, []byte{0x00, 0x00, 0x01}, b[offTRSHighRes:offTRSHighRes+3])

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, s.USBHighRes, decoded.USBHighRes)
	assert.Equal(t, s.TRSHighRes, decoded.TRSHighRes)
}

func TestFaderRange(t *testing.T) {
	var s Settings
	s.FaderMin = 100
	s.FaderMax = 16000

	b := s.Encode()
	assert.Equal(t, []byte{100, 0}, b[offFaderMin:offFaderMin+2])
	assert.Equal(t, []byte{16000 & 0x7F, 16000 >> 7}, b[offFaderMax:offFaderMax+2])

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), decoded.FaderMin)
	assert.Equal(t, uint16(16000), decoded.FaderMax)
}

func TestReservedPreserved(t *testing.T) {
	b := DefaultBlock()
	copy(b[offReserved:], []byte{1, 2, 3, 4, 5, 6, 7})

	s, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, [7]byte{1, 2, 3, 4, 5, 6, 7}, s.Reserved)
	assert.Equal(t, b, s.Encode())
}

func TestIsFirstBoot(t *testing.T) {
	erased := make([]byte, BlockLength)
	for i := range erased {
		erased[i] = Erased
	}
	assert.True(t, IsFirstBoot(erased))
	assert.True(t, IsFirstBoot(nil))
	assert.False(t, IsFirstBoot(DefaultBlock()))
}

func TestStatusByte(t *testing.T) {
	assert.Equal(t, byte(0xB0), StatusByte(1))
	assert.Equal(t, byte(0xBF), StatusByte(16))
	assert.Equal(t, byte(0xBF), StatusByte(0))
}
