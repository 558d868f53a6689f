package chanlist

import "fmt"

// Mode is a demodulation mode understood by the receiver.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeAM
	ModeFM
	ModeWFM
	ModeWFMStereo
	ModeLSB
	ModeUSB
	ModeCW
	ModeCWL
	ModeCWU
)

func (m Mode) String() string {
	switch m {
	case ModeAM:
		return "AM"
	case ModeFM:
		return "FM"
	case ModeWFM:
		return "WFM"
	case ModeWFMStereo:
		return "WFM_ST"
	case ModeLSB:
		return "LSB"
	case ModeUSB:
		return "USB"
	case ModeCW:
		return "CW"
	case ModeCWL:
		return "CWL"
	case ModeCWU:
		return "CWU"
	default:
		return "UNKNOWN"
	}
}

// ParseMode converts a mode token from a channel table or the command
// line into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "AM":
		return ModeAM, nil
	case "FM":
		return ModeFM, nil
	case "WFM":
		return ModeWFM, nil
	case "WFM_ST":
		return ModeWFMStereo, nil
	case "LSB":
		return ModeLSB, nil
	case "USB":
		return ModeUSB, nil
	case "CW":
		return ModeCW, nil
	case "CWL":
		return ModeCWL, nil
	case "CWU":
		return ModeCWU, nil
	default:
		return ModeUnknown, fmt.Errorf("invalid demodulation mode: %q", s)
	}
}
