package models

type RoomMode string

const (
	RoomModeDirect RoomMode = "direct"
	RoomModeGroup  RoomMode = "group"
)

// ParseRoomMode maps user input to a room mode, falling back to direct
func ParseRoomMode(s string) RoomMode {
	if RoomMode(s) == RoomModeGroup {
		return RoomModeGroup
	}
	return RoomModeDirect
}

type CallMode string

const (
	CallModeIdle  CallMode = "idle"
	CallModeAudio CallMode = "audio"
	CallModeVideo CallMode = "video"
)

// Label returns the header text shown for the call panel
func (m CallMode) Label() string {
	switch m {
	case CallModeAudio:
		return "Audio Call"
	case CallModeVideo:
		return "Video Call"
	default:
		return "No Active Call"
	}
}
