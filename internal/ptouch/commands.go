// Package ptouch speaks the Brother PT raster protocol: byte-exact command
// builders, the 32-byte status block, and the driver state machine that
// sequences them over a transport.
package ptouch

import "labelpress/internal/raster"

const Esc = 0x1B

// Mode flags for the setMode command.
type Mode byte

const (
	AutoCut        Mode = 0x40
	MirrorPrinting Mode = 0x80
)

// Every builder returns a fresh buffer; the byte layouts are fixed by the
// printer firmware and must never vary.

// invalidate flushes whatever partial command the printer may be sitting on.
func invalidate() []byte {
	return make([]byte, 100)
}

func initialize() []byte {
	return []byte{Esc, 0x40}
}

func enterDynamicCommandMode() []byte {
	return []byte{Esc, 0x69, 0x61, 0x01}
}

func enableStatusNotification() []byte {
	return []byte{Esc, 0x69, 0x21, 0x00}
}

// printInformation announces the media the job expects and how many raster
// lines follow. The length field counts 16-byte lines, hence the shift.
func printInformation(data []byte, mediaWidthMM byte) []byte {
	lines := uint32(len(data) >> 4)
	return []byte{
		Esc, 0x69, 0x7A, 0x84, 0x00,
		mediaWidthMM, 0x00,
		byte(lines), byte(lines >> 8), byte(lines >> 16), byte(lines >> 24),
		0x00, 0x00,
	}
}

func setMode(mode Mode) []byte {
	return []byte{Esc, 0x69, 0x4D, byte(mode)}
}

// setAdvancedMode controls the cut-between-pages behaviour: chained pages
// suppress the no-chain flag so the printer holds the tape.
func setAdvancedMode(chained bool) []byte {
	value := byte(0x08)
	if chained {
		value = 0x00
	}
	return []byte{Esc, 0x69, 0x4B, value}
}

func marginAmount(dots uint16) []byte {
	return []byte{Esc, 0x69, 0x64, byte(dots), byte(dots >> 8)}
}

func setCompressionMode() []byte {
	return []byte{0x4D, 0x02}
}

func printWithFeeding() []byte {
	return []byte{0x1A}
}

func printWithoutFeeding() []byte {
	return []byte{0x0C}
}

func statusInformationRequest() []byte {
	return []byte{Esc, 0x69, 0x53}
}

// rasterCommands splits bit-packed raster data into per-line transfer
// commands. An all-zero line collapses to the single-byte blank marker;
// anything else is PackBits-compressed behind a length prefix. Blank tape
// is common enough that the shortcut is a real bandwidth win. A trailing
// chunk shorter than a full line is compressed as-is, never dropped.
func rasterCommands(data []byte) [][]byte {
	cmds := make([][]byte, 0, (len(data)+raster.LineBytes-1)/raster.LineBytes)
	for i := 0; i < len(data); i += raster.LineBytes {
		line := data[i:min(i+raster.LineBytes, len(data))]
		if allZero(line) {
			cmds = append(cmds, []byte{0x5A})
			continue
		}
		packed := packBits(line)
		cmd := make([]byte, 0, 3+len(packed))
		cmd = append(cmd, 0x47, byte(len(packed)), byte(len(packed)>>8))
		cmd = append(cmd, packed...)
		cmds = append(cmds, cmd)
	}
	return cmds
}

func allZero(p []byte) bool {
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}
