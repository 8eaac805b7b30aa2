package domain

import "strings"

// RoomID is a typed broadcast key: "user:<userId>", "project:<projectId>"
// or "channel:<channelId>". Rooms are ephemeral; the id carries the kind.
type RoomID string

type RoomKind int

const (
	RoomUnknown RoomKind = iota
	RoomUser
	RoomProject
	RoomChannel
)

func UserRoom(uid UserID) RoomID   { return RoomID("user:" + string(uid)) }
func ProjectRoom(id string) RoomID { return RoomID("project:" + id) }
func ChannelRoom(id string) RoomID { return RoomID("channel:" + id) }

func (r RoomID) Kind() RoomKind {
	switch {
	case strings.HasPrefix(string(r), "user:"):
		return RoomUser
	case strings.HasPrefix(string(r), "project:"):
		return RoomProject
	case strings.HasPrefix(string(r), "channel:"):
		return RoomChannel
	default:
		return RoomUnknown
	}
}

// Suffix returns the raw id after the kind prefix, or "" for unknown kinds.
func (r RoomID) Suffix() string {
	if i := strings.IndexByte(string(r), ':'); i >= 0 && r.Kind() != RoomUnknown {
		return string(r)[i+1:]
	}
	return ""
}

// ParseRoomID validates a client-supplied room id. A RoomID must carry a
// known prefix and a non-empty suffix.
func ParseRoomID(raw string) (RoomID, bool) {
	r := RoomID(raw)
	if r.Kind() == RoomUnknown || r.Suffix() == "" {
		return "", false
	}
	return r, true
}
