package ptouch

import (
	"fmt"
)

// StatusLength is the size of every status block the printer sends. Reads
// shorter than this are "no reply yet", never a partial status.
const StatusLength = 32

// Fixed byte offsets into a status block.
const (
	offErrorInformation1 = 8
	offErrorInformation2 = 9
	offMediaWidth        = 10
	offMediaType         = 11
	offMode              = 15
	offMediaLength       = 17
	offStatusType        = 18
	offPhaseType         = 19
	offPhaseNumber       = 20
	offNotificationNum   = 22
	offTapeColor         = 24
	offTextColor         = 25
	offHardwareSettings  = 26
)

type StatusType byte

const (
	StatusReply             StatusType = 0x00
	StatusPrintingCompleted StatusType = 0x01
	StatusErrorOccurred     StatusType = 0x02
	StatusTurnedOff         StatusType = 0x04
	StatusNotification      StatusType = 0x05
	StatusPhaseChange       StatusType = 0x06
)

func (s StatusType) String() string {
	switch s {
	case StatusReply:
		return "reply to status request"
	case StatusPrintingCompleted:
		return "printing completed"
	case StatusErrorOccurred:
		return "error occurred"
	case StatusTurnedOff:
		return "turned off"
	case StatusNotification:
		return "notification"
	case StatusPhaseChange:
		return "phase change"
	default:
		return fmt.Sprintf("0x%02X", byte(s))
	}
}

type MediaType byte

const (
	MediaNone             MediaType = 0x00
	MediaLaminatedTape    MediaType = 0x01
	MediaNonLaminatedTape MediaType = 0x03
	MediaHeatShrinkTube   MediaType = 0x11
	MediaIncompatible     MediaType = 0xFF
)

func (m MediaType) String() string {
	switch m {
	case MediaNone:
		return "no media"
	case MediaLaminatedTape:
		return "laminated tape"
	case MediaNonLaminatedTape:
		return "non-laminated tape"
	case MediaHeatShrinkTube:
		return "heat-shrink tube"
	case MediaIncompatible:
		return "incompatible tape"
	default:
		return fmt.Sprintf("0x%02X", byte(m))
	}
}

type TapeColor byte

var tapeColorNames = map[TapeColor]string{
	0x01: "white",
	0x02: "other",
	0x03: "clear",
	0x04: "red",
	0x05: "blue",
	0x06: "yellow",
	0x07: "green",
	0x08: "black",
	0x09: "clear white text",
	0x20: "matte white",
	0x21: "matte clear",
	0x22: "matte silver",
	0x23: "satin gold",
	0x24: "satin silver",
	0x30: "blue (d)",
	0x31: "red (d)",
	0x40: "fluorescent orange",
	0x41: "fluorescent yellow",
	0x50: "berry pink (s)",
	0x51: "light gray (s)",
	0x52: "lime green (s)",
	0x60: "yellow (f)",
	0x61: "pink (f)",
	0x62: "blue (f)",
	0x70: "white heat-shrink tube",
	0x90: "white flex id",
	0x91: "yellow flex id",
	0xF0: "cleaning",
	0xF1: "stencil",
	0xFF: "incompatible",
}

func (c TapeColor) String() string {
	if name, ok := tapeColorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", byte(c))
}

type TextColor byte

var textColorNames = map[TextColor]string{
	0x01: "white",
	0x02: "other",
	0x04: "red",
	0x05: "blue",
	0x08: "black",
	0x0A: "gold",
	0x62: "blue (f)",
	0xF0: "cleaning",
	0xF1: "stencil",
	0xFF: "incompatible",
}

func (c TextColor) String() string {
	if name, ok := textColorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", byte(c))
}

// Status is a decoded 32-byte status block. Unknown byte values survive
// decoding; only a short buffer fails it.
type Status struct {
	ErrorInformation1 byte
	ErrorInformation2 byte
	MediaWidthMM      int
	MediaType         MediaType
	Mode              byte
	MediaLength       int
	Type              StatusType
	PhaseType         byte
	PhaseNumber       byte
	Notification      byte
	TapeColor         TapeColor
	TextColor         TextColor
	HardwareSettings  byte
}

// DecodeStatus extracts the fixed-offset fields from a raw status block.
func DecodeStatus(raw []byte) (*Status, error) {
	if len(raw) < StatusLength {
		return nil, fmt.Errorf("status block is %d bytes, want %d", len(raw), StatusLength)
	}
	return &Status{
		ErrorInformation1: raw[offErrorInformation1],
		ErrorInformation2: raw[offErrorInformation2],
		MediaWidthMM:      int(raw[offMediaWidth]),
		MediaType:         MediaType(raw[offMediaType]),
		Mode:              raw[offMode],
		MediaLength:       int(raw[offMediaLength]),
		Type:              StatusType(raw[offStatusType]),
		PhaseType:         raw[offPhaseType],
		PhaseNumber:       raw[offPhaseNumber],
		Notification:      raw[offNotificationNum],
		TapeColor:         TapeColor(raw[offTapeColor]),
		TextColor:         TextColor(raw[offTextColor]),
		HardwareSettings:  raw[offHardwareSettings],
	}, nil
}

// Report is the media summary exposed to UI and API layers.
type Report struct {
	MediaWidthMM int    `json:"media_width_mm"`
	MediaType    string `json:"media_type"`
	TapeColor    string `json:"tape_color"`
	TextColor    string `json:"text_color"`
}

func (s *Status) Report() Report {
	return Report{
		MediaWidthMM: s.MediaWidthMM,
		MediaType:    s.MediaType.String(),
		TapeColor:    s.TapeColor.String(),
		TextColor:    s.TextColor.String(),
	}
}
