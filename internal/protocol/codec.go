package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Decode failure modes. Callers match with errors.Is; both are local,
// non-fatal conditions (drop the datagram, keep serving).
var (
	ErrMalformedPacket   = errors.New("malformed packet")
	ErrUnknownPacketType = errors.New("unknown packet type")
)

// MaxPayloadSize is the largest payload a length-prefixed packet can carry
// (the prefix is a u16).
const MaxPayloadSize = 0xFFFF

// Encode serializes a Packet into a byte slice ready for a UDP send.
// Identifiers longer than their slot are truncated; shorter ones are
// zero-padded. Typed payloads (Handshake, Audio, Error) are written with a
// u16 big-endian length prefix, SetMute as a single raw byte.
func Encode(pkt *Packet) ([]byte, error) {
	if !validType(pkt.Type) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownPacketType, pkt.Type)
	}

	size := HeaderSize
	switch {
	case HasLengthPrefixedPayload(pkt.Type):
		if len(pkt.Payload) > MaxPayloadSize {
			return nil, fmt.Errorf("%w: payload %d bytes exceeds %d", ErrMalformedPacket, len(pkt.Payload), MaxPayloadSize)
		}
		size += 2 + len(pkt.Payload)
	case pkt.Type == TypeSetMute:
		size++
	}

	buf := make([]byte, size)
	buf[0] = pkt.Type
	binary.BigEndian.PutUint32(buf[1:5], pkt.Sequence)
	copy(buf[5:5+UserIDSize], pkt.UserID) // copy truncates and leaves zero padding
	copy(buf[5+UserIDSize:HeaderSize-4], pkt.ChannelID)
	binary.BigEndian.PutUint32(buf[HeaderSize-4:HeaderSize], pkt.Timestamp)

	switch {
	case HasLengthPrefixedPayload(pkt.Type):
		binary.BigEndian.PutUint16(buf[HeaderSize:HeaderSize+2], uint16(len(pkt.Payload)))
		copy(buf[HeaderSize+2:], pkt.Payload)
	case pkt.Type == TypeSetMute:
		if len(pkt.Payload) > 0 && pkt.Payload[0] != 0 {
			buf[HeaderSize] = 1
		}
	}

	return buf, nil
}

// Decode deserializes a datagram into a Packet. It returns
// ErrMalformedPacket when the data is shorter than the fixed header or a
// declared payload length overruns the datagram, and ErrUnknownPacketType
// for an unrecognized type byte. The payload is copied, never aliased to
// the input buffer, and bytes past the declared length are ignored.
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes (need at least %d)", ErrMalformedPacket, len(data), HeaderSize)
	}

	typ := data[0]
	if !validType(typ) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownPacketType, typ)
	}

	pkt := &Packet{
		Type:      typ,
		Sequence:  binary.BigEndian.Uint32(data[1:5]),
		UserID:    trimIdentifier(data[5 : 5+UserIDSize]),
		ChannelID: trimIdentifier(data[5+UserIDSize : HeaderSize-4]),
		Timestamp: binary.BigEndian.Uint32(data[HeaderSize-4 : HeaderSize]),
	}

	rest := data[HeaderSize:]
	switch {
	case HasLengthPrefixedPayload(typ):
		if len(rest) < 2 {
			return nil, fmt.Errorf("%w: missing payload length prefix", ErrMalformedPacket)
		}
		n := int(binary.BigEndian.Uint16(rest[:2]))
		if len(rest) < 2+n {
			return nil, fmt.Errorf("%w: declared payload %d bytes, only %d present", ErrMalformedPacket, n, len(rest)-2)
		}
		pkt.Payload = make([]byte, n)
		copy(pkt.Payload, rest[2:2+n])
	case typ == TypeSetMute:
		if len(rest) < 1 {
			return nil, fmt.Errorf("%w: missing mute state byte", ErrMalformedPacket)
		}
		// Any non-zero byte means muted; normalize so round-trips are stable.
		if rest[0] != 0 {
			pkt.Payload = []byte{1}
		} else {
			pkt.Payload = []byte{0}
		}
	}

	return pkt, nil
}

func validType(t uint8) bool {
	return t >= TypeHandshake && t <= TypeAck
}

// trimIdentifier converts a fixed-width identifier slot to a string,
// stripping the trailing NUL padding.
func trimIdentifier(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
