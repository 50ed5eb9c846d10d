package ptouch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedCommands(t *testing.T) {
	assert.Equal(t, bytes.Repeat([]byte{0x00}, 100), invalidate())
	assert.Equal(t, []byte{0x1B, 0x40}, initialize())
	assert.Equal(t, []byte{0x1B, 0x69, 0x61, 0x01}, enterDynamicCommandMode())
	assert.Equal(t, []byte{0x1B, 0x69, 0x21, 0x00}, enableStatusNotification())
	assert.Equal(t, []byte{0x4D, 0x02}, setCompressionMode())
	assert.Equal(t, []byte{0x1A}, printWithFeeding())
	assert.Equal(t, []byte{0x0C}, printWithoutFeeding())
	assert.Equal(t, []byte{0x1B, 0x69, 0x53}, statusInformationRequest())
}

func TestPrintInformation(t *testing.T) {
	// 35 raster lines of 24 mm tape: 560 data bytes, length field 35 LE.
	data := make([]byte, 35*16)
	cmd := printInformation(data, 24)
	assert.Equal(t, []byte{
		0x1B, 0x69, 0x7A, 0x84, 0x00,
		24, 0x00,
		35, 0x00, 0x00, 0x00,
		0x00, 0x00,
	}, cmd)

	// The length field counts 16-byte lines and is little-endian.
	big := make([]byte, 0x1234*16)
	cmd = printInformation(big, 12)
	assert.Equal(t, []byte{0x34, 0x12, 0x00, 0x00}, cmd[7:11])
}

func TestSetMode(t *testing.T) {
	assert.Equal(t, []byte{0x1B, 0x69, 0x4D, 0x40}, setMode(AutoCut))
}

func TestSetAdvancedMode(t *testing.T) {
	assert.Equal(t, []byte{0x1B, 0x69, 0x4B, 0x08}, setAdvancedMode(false))
	assert.Equal(t, []byte{0x1B, 0x69, 0x4B, 0x00}, setAdvancedMode(true))
}

func TestMarginAmount(t *testing.T) {
	assert.Equal(t, []byte{0x1B, 0x69, 0x64, 0x00, 0x00}, marginAmount(0))
	assert.Equal(t, []byte{0x1B, 0x69, 0x64, 0x2C, 0x01}, marginAmount(300))
}

func TestRasterCommandsBlankLine(t *testing.T) {
	cmds := rasterCommands(make([]byte, 16))
	require.Len(t, cmds, 1)
	assert.Equal(t, []byte{0x5A}, cmds[0])
}

func TestRasterCommandsNonBlankLineIsNeverTheMarker(t *testing.T) {
	for bit := range 16 * 8 {
		line := make([]byte, 16)
		line[bit/8] = 0x80 >> (bit % 8)
		cmds := rasterCommands(line)
		require.Len(t, cmds, 1)
		assert.EqualValues(t, 0x47, cmds[0][0], "bit %v", bit)
	}
}

func TestRasterCommandsCompressedLine(t *testing.T) {
	line := make([]byte, 16)
	line[0] = 0xFF
	cmds := rasterCommands(line)
	require.Len(t, cmds, 1)

	// 0x47, LE16 length, then PackBits: literal FF + run of 15 zeros.
	packed := packBits(line)
	want := append([]byte{0x47, byte(len(packed)), 0x00}, packed...)
	assert.Equal(t, want, cmds[0])
}

func TestRasterCommandsKeepsPartialTrailingLine(t *testing.T) {
	data := make([]byte, 20)
	copy(data[16:], []byte{0x01, 0x02, 0x03, 0x04})
	cmds := rasterCommands(data)
	require.Len(t, cmds, 2)
	assert.Equal(t, []byte{0x5A}, cmds[0])
	assert.Equal(t, []byte{0x47, 0x05, 0x00, 0x03, 0x01, 0x02, 0x03, 0x04}, cmds[1])

	// A blank tail still collapses to the marker.
	cmds = rasterCommands(make([]byte, 18))
	require.Len(t, cmds, 2)
	assert.Equal(t, []byte{0x5A}, cmds[1])
}

func TestRasterCommandsSplitsLines(t *testing.T) {
	data := make([]byte, 48)
	data[20] = 0x01 // only the middle line has ink
	cmds := rasterCommands(data)
	require.Len(t, cmds, 3)
	assert.Equal(t, []byte{0x5A}, cmds[0])
	assert.EqualValues(t, 0x47, cmds[1][0])
	assert.Equal(t, []byte{0x5A}, cmds[2])
}
