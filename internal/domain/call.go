package domain

type CallID string

// CallState is the single tagged state of one call attempt. "Idle" has no
// representation: a call that does not exist is idle, and a call that
// reached CallEnded is dropped from the coordinator's table.
type CallState int

const (
	CallRinging CallState = iota
	CallConnected
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallConnected:
		return "connected"
	case CallEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EndReason travels verbatim in the call:ended event.
type EndReason string

const (
	EndHangup           EndReason = "hangup"
	EndRejected         EndReason = "rejected"
	EndTimeout          EndReason = "timeout"
	EndUnavailable      EndReason = "unavailable"
	EndPeerDisconnected EndReason = "peer_disconnected"
)

// ValidEndReason gates client-supplied reasons on call:end.
func ValidEndReason(r EndReason) bool {
	switch r {
	case EndHangup, EndRejected, EndTimeout, EndUnavailable, EndPeerDisconnected:
		return true
	}
	return false
}
