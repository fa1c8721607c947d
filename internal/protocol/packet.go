// Package protocol defines the UDP packet format for the voice streaming server.
package protocol

// Packet type constants.
const (
	TypeHandshake    uint8 = 0x01 // Authentication request carrying a JWT
	TypeAudio        uint8 = 0x02 // Opaque audio payload
	TypeJoinChannel  uint8 = 0x03 // Switch to another channel
	TypeLeaveChannel uint8 = 0x04 // Leave channel and tear down the session
	TypeSetMute      uint8 = 0x05 // Mute/unmute request (1-byte payload)
	TypeHeartbeat    uint8 = 0x06 // Keepalive, refreshes session activity
	TypeError        uint8 = 0x07 // Server error response (UTF-8 reason)
	TypeAck          uint8 = 0x08 // Server acknowledgment
)

// HeaderSize is the fixed header size:
// Type(1) + Sequence(4) + UserID(8) + ChannelID(4) + Timestamp(4).
const HeaderSize = 21

// Identifier slot widths. IDs longer than their slot are truncated on encode;
// the wire format is fixed-width, so external identifiers must fit these
// limits or be mapped to short local IDs by the caller.
const (
	UserIDSize    = 8
	ChannelIDSize = 4
)

// Packet represents one decoded datagram of the voice protocol.
type Packet struct {
	Type      uint8  // one of the Type* constants
	Sequence  uint32 // sender-assigned, advisory only (no reordering server-side)
	UserID    string // at most UserIDSize bytes on the wire
	ChannelID string // at most ChannelIDSize bytes on the wire
	Timestamp uint32 // sender-supplied Unix seconds, untrusted
	Payload   []byte // interpretation depends on Type
}

// HasLengthPrefixedPayload reports whether the given packet type carries a
// u16 big-endian length-prefixed payload after the header.
func HasLengthPrefixedPayload(t uint8) bool {
	switch t {
	case TypeHandshake, TypeAudio, TypeError:
		return true
	}
	return false
}
