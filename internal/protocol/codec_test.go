package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestEncodeDecodeRoundTrip verifies that encoding and decoding are inverse
// operations for every packet type and a range of field values.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		pkt  *Packet
	}{
		{
			name: "handshake with JSON payload",
			pkt: &Packet{
				Type:      TypeHandshake,
				Sequence:  0,
				ChannelID: "gen1",
				Timestamp: 1700000000,
				Payload:   []byte(`{"token":"a.b.c","channel_id":"gen1"}`),
			},
		},
		{
			name: "audio with payload",
			pkt: &Packet{
				Type:      TypeAudio,
				Sequence:  42,
				UserID:    "alice",
				ChannelID: "gen1",
				Timestamp: 1700000123,
				Payload:   []byte{1, 2, 3, 4, 5},
			},
		},
		{
			name: "audio with empty payload",
			pkt: &Packet{
				Type:      TypeAudio,
				Sequence:  43,
				UserID:    "alice",
				ChannelID: "gen1",
				Timestamp: 1700000124,
				Payload:   []byte{},
			},
		},
		{
			name: "join channel, no payload",
			pkt: &Packet{
				Type:      TypeJoinChannel,
				Sequence:  7,
				UserID:    "bob",
				ChannelID: "ops",
				Timestamp: 1700000200,
			},
		},
		{
			name: "leave channel",
			pkt: &Packet{
				Type:      TypeLeaveChannel,
				UserID:    "bob",
				ChannelID: "ops",
				Timestamp: 1700000201,
			},
		},
		{
			name: "set mute on",
			pkt: &Packet{
				Type:      TypeSetMute,
				UserID:    "alice",
				ChannelID: "gen1",
				Timestamp: 1700000300,
				Payload:   []byte{1},
			},
		},
		{
			name: "set mute off",
			pkt: &Packet{
				Type:      TypeSetMute,
				UserID:    "alice",
				ChannelID: "gen1",
				Timestamp: 1700000301,
				Payload:   []byte{0},
			},
		},
		{
			name: "heartbeat",
			pkt: &Packet{
				Type:      TypeHeartbeat,
				Sequence:  99,
				UserID:    "carol",
				ChannelID: "gen1",
				Timestamp: 1700000400,
			},
		},
		{
			name: "error with reason",
			pkt: &Packet{
				Type:      TypeError,
				ChannelID: "gen1",
				Timestamp: 1700000500,
				Payload:   []byte("unauthenticated"),
			},
		},
		{
			name: "ack",
			pkt: &Packet{
				Type:      TypeAck,
				Sequence:  5,
				UserID:    "alice",
				ChannelID: "gen1",
				Timestamp: 1700000600,
			},
		},
		{
			name: "maximum-length identifiers",
			pkt: &Packet{
				Type:      TypeAudio,
				Sequence:  1,
				UserID:    "eightchr",
				ChannelID: "four",
				Timestamp: 1,
				Payload:   []byte("x"),
			},
		},
		{
			name: "boundary sequence and timestamp",
			pkt: &Packet{
				Type:      TypeAudio,
				Sequence:  0xFFFFFFFF,
				UserID:    "a",
				ChannelID: "b",
				Timestamp: 0xFFFFFFFF,
				Payload:   []byte("y"),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode(tc.pkt)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			want := *tc.pkt
			if want.Payload != nil && len(want.Payload) == 0 {
				// Empty payloads decode as empty slices either way.
				want.Payload = []byte{}
			}
			if diff := cmp.Diff(&want, decoded); diff != "" {
				t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestEncodeTruncatesIdentifiers verifies that over-long identifiers are cut
// to their wire slots deterministically.
func TestEncodeTruncatesIdentifiers(t *testing.T) {
	pkt := &Packet{
		Type:      TypeAudio,
		Sequence:  1,
		UserID:    "0123456789abcdef", // 16 bytes, slot is 8
		ChannelID: "longchannel",      // 11 bytes, slot is 4
		Timestamp: 1,
		Payload:   []byte("p"),
	}

	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.UserID != "01234567" {
		t.Errorf("UserID = %q, want %q", decoded.UserID, "01234567")
	}
	if decoded.ChannelID != "long" {
		t.Errorf("ChannelID = %q, want %q", decoded.ChannelID, "long")
	}
}

// TestDecodeTooShort verifies that anything shorter than the fixed header is
// rejected as malformed.
func TestDecodeTooShort(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"1 byte", []byte{TypeAudio}},
		{"one less than header", make([]byte, HeaderSize-1)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if len(tc.data) > 0 {
				tc.data[0] = TypeAudio
			}
			_, err := Decode(tc.data)
			if !errors.Is(err, ErrMalformedPacket) {
				t.Fatalf("Decode error = %v, want ErrMalformedPacket", err)
			}
		})
	}
}

// TestDecodeUnknownType verifies the non-fatal unknown-type error.
func TestDecodeUnknownType(t *testing.T) {
	for _, typ := range []uint8{0x00, 0x09, 0x7F, 0xFF} {
		data := make([]byte, HeaderSize)
		data[0] = typ
		if _, err := Decode(data); !errors.Is(err, ErrUnknownPacketType) {
			t.Errorf("type 0x%02x: Decode error = %v, want ErrUnknownPacketType", typ, err)
		}
	}
}

// TestDecodePayloadLengthOverrun verifies that a declared payload length
// larger than the datagram is rejected and never read past.
func TestDecodePayloadLengthOverrun(t *testing.T) {
	pkt := &Packet{
		Type:      TypeAudio,
		UserID:    "alice",
		ChannelID: "gen1",
		Payload:   []byte("abcdef"),
	}
	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Inflate the declared length past the datagram end.
	encoded[HeaderSize] = 0xFF
	encoded[HeaderSize+1] = 0xFF

	if _, err := Decode(encoded); !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("Decode error = %v, want ErrMalformedPacket", err)
	}
}

// TestDecodeIgnoresTrailingBytes verifies that bytes past the declared
// payload length are not part of the decoded payload.
func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	pkt := &Packet{
		Type:      TypeAudio,
		UserID:    "alice",
		ChannelID: "gen1",
		Payload:   []byte("abc"),
	}
	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	encoded = append(encoded, 0xDE, 0xAD)

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decoded.Payload, []byte("abc")) {
		t.Errorf("Payload = %v, want %v", decoded.Payload, []byte("abc"))
	}
}

// TestDecodePreservesPayload verifies the payload is copied, not aliased to
// the input buffer.
func TestDecodePreservesPayload(t *testing.T) {
	pkt := &Packet{
		Type:      TypeAudio,
		UserID:    "alice",
		ChannelID: "gen1",
		Payload:   []byte("original"),
	}
	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	encoded[HeaderSize+2] = 0xFF

	if !bytes.Equal(decoded.Payload, []byte("original")) {
		t.Errorf("payload was aliased to the input buffer: %v", decoded.Payload)
	}
}

// TestSetMuteNormalization verifies that any non-zero mute byte decodes to 1.
func TestSetMuteNormalization(t *testing.T) {
	pkt := &Packet{Type: TypeSetMute, UserID: "alice", ChannelID: "gen1"}
	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	encoded[HeaderSize] = 0x42

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decoded.Payload, []byte{1}) {
		t.Errorf("Payload = %v, want [1]", decoded.Payload)
	}
}

// TestEncodeRejectsOversizedPayload verifies the u16 length prefix limit.
func TestEncodeRejectsOversizedPayload(t *testing.T) {
	pkt := &Packet{
		Type:    TypeAudio,
		Payload: make([]byte, MaxPayloadSize+1),
	}
	if _, err := Encode(pkt); !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("Encode error = %v, want ErrMalformedPacket", err)
	}
}

// TestHeaderLayout pins the exact byte layout of the fixed header.
func TestHeaderLayout(t *testing.T) {
	pkt := &Packet{
		Type:      TypeAudio,
		Sequence:  0x01020304,
		UserID:    "ab",
		ChannelID: "cd",
		Timestamp: 0x0A0B0C0D,
		Payload:   []byte{0xEE},
	}
	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := []byte{
		TypeAudio,
		0x01, 0x02, 0x03, 0x04, // sequence
		'a', 'b', 0, 0, 0, 0, 0, 0, // user_id, zero padded
		'c', 'd', 0, 0, // channel_id, zero padded
		0x0A, 0x0B, 0x0C, 0x0D, // timestamp
		0x00, 0x01, // payload length prefix
		0xEE,
	}
	if !bytes.Equal(encoded, want) {
		t.Errorf("encoded layout mismatch:\n got %v\nwant %v", encoded, want)
	}
}
