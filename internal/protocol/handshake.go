package protocol

import (
	"encoding/json"
	"fmt"
)

// HandshakeData is the JSON body of a Handshake payload.
type HandshakeData struct {
	Token     string `json:"token"`
	ChannelID string `json:"channel_id"`
}

// ParseHandshake interprets a Handshake payload. Current clients send a JSON
// object {"token": ..., "channel_id": ...}; any payload that does not parse
// as that object is treated as a legacy bare JWT, with the channel taken
// from the header slot.
func ParseHandshake(payload []byte, headerChannelID string) (HandshakeData, error) {
	if len(payload) == 0 {
		return HandshakeData{}, fmt.Errorf("%w: empty handshake payload", ErrMalformedPacket)
	}

	var hs HandshakeData
	if err := json.Unmarshal(payload, &hs); err == nil && hs.Token != "" {
		if hs.ChannelID == "" {
			hs.ChannelID = headerChannelID
		}
		return hs, nil
	}

	// Legacy format: the payload is the raw token bytes.
	return HandshakeData{
		Token:     string(payload),
		ChannelID: headerChannelID,
	}, nil
}

// NewError builds an Error packet carrying a machine-stable reason string.
func NewError(userID, channelID, reason string, timestamp uint32) *Packet {
	return &Packet{
		Type:      TypeError,
		UserID:    userID,
		ChannelID: channelID,
		Timestamp: timestamp,
		Payload:   []byte(reason),
	}
}

// NewAck builds an Ack packet echoing the given sequence number.
func NewAck(userID, channelID string, sequence, timestamp uint32) *Packet {
	return &Packet{
		Type:      TypeAck,
		Sequence:  sequence,
		UserID:    userID,
		ChannelID: channelID,
		Timestamp: timestamp,
	}
}
