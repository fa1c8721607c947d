package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/Armagedda/whisper-fleet-link/internal/auth"
	"github.com/Armagedda/whisper-fleet-link/internal/event"
	"github.com/Armagedda/whisper-fleet-link/internal/protocol"
	"github.com/Armagedda/whisper-fleet-link/internal/util"
)

// handleDatagram decodes one datagram and dispatches it by type. It runs in
// its own goroutine; any outcome here is local to this packet.
func (s *Server) handleDatagram(ctx context.Context, data []byte, addr *net.UDPAddr) {
	pkt, err := protocol.Decode(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, protocol.ErrUnknownPacketType) {
			reason = "unknown_type"
		}
		s.metrics.PacketsDropped.WithLabelValues(reason).Inc()
		// Debug level only: a garbage flood must not become a log flood.
		util.LogDebug("dropping packet from %s: %v", addr, err)
		return
	}

	switch pkt.Type {
	case protocol.TypeHandshake:
		s.handleHandshake(ctx, pkt, addr)
	case protocol.TypeAudio:
		s.handleAudio(pkt, data, addr)
	case protocol.TypeJoinChannel:
		s.handleJoinChannel(ctx, pkt, addr)
	case protocol.TypeLeaveChannel:
		s.handleLeaveChannel(pkt, addr)
	case protocol.TypeSetMute:
		s.handleSetMute(pkt, addr)
	case protocol.TypeHeartbeat:
		s.handleHeartbeat(pkt, addr)
	default:
		// Error and Ack travel server-to-client; a client echoing them back
		// is noise.
		util.LogDebug("ignoring %#02x packet from %s", pkt.Type, addr)
	}
}

// requireSession looks up the sender's session. Without one the packet is
// rejected with a rate-limited Error reply.
func (s *Server) requireSession(addr *net.UDPAddr) (auth.Session, bool) {
	sess, ok := s.authn.SessionByAddr(addr)
	if !ok {
		s.metrics.PacketsDropped.WithLabelValues("unauthenticated").Inc()
		s.sendError(addr, "", "", "unauthenticated")
		return auth.Session{}, false
	}
	return sess, true
}

func (s *Server) handleHandshake(ctx context.Context, pkt *protocol.Packet, addr *net.UDPAddr) {
	hs, err := protocol.ParseHandshake(pkt.Payload, pkt.ChannelID)
	if err != nil {
		s.metrics.PacketsDropped.WithLabelValues("malformed").Inc()
		util.LogDebug("bad handshake payload from %s: %v", addr, err)
		return
	}

	start := time.Now()
	sess, err := s.authn.Authenticate(ctx, hs, addr)
	s.metrics.HandshakeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := "auth_failed"
		switch {
		case errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrNotAMember),
			errors.Is(err, auth.ErrBanned):
			reason = err.Error()
		default:
			// Store outage or timeout; the client only learns it failed.
			util.LogError("handshake store lookup failed for %s: %v", addr, err)
		}
		s.metrics.HandshakesTotal.WithLabelValues(reason).Inc()
		s.sendError(addr, "", hs.ChannelID, reason)
		return
	}

	s.registry.Join(sess.UserID, sess.ChannelID, addr)
	s.metrics.HandshakesTotal.WithLabelValues("ok").Inc()
	s.syncGauges()

	util.LogInfo("user %s authenticated for channel %s from %s", sess.UserID, sess.ChannelID, addr)

	s.sendPacket(protocol.NewAck(sess.UserID, sess.ChannelID, pkt.Sequence, nowUnix()), addr)
	s.publish(event.Event{
		Kind:      event.KindUserJoined,
		UserID:    sess.UserID,
		ChannelID: sess.ChannelID,
		Addr:      addr.String(),
	})
}

// handleAudio forwards the sender's datagram, byte for byte, to every other
// unmuted member of the sender's channel. The sender's own timestamp and
// sequence pass through untouched; reordering is the receiving client's job.
func (s *Server) handleAudio(pkt *protocol.Packet, raw []byte, addr *net.UDPAddr) {
	sess, ok := s.requireSession(addr)
	if !ok {
		return
	}
	s.authn.Touch(addr)
	s.registry.Touch(addr)

	if s.registry.Muted(sess.UserID) {
		// Muted means no transmission: drop silently, no reply.
		s.metrics.PacketsDropped.WithLabelValues("sender_muted").Inc()
		return
	}

	members := s.registry.MembersOf(sess.ChannelID)
	for _, m := range members {
		if m.UserID == sess.UserID || m.Muted {
			continue
		}
		// One goroutine per recipient: a slow or unreachable peer must not
		// delay delivery to the others.
		go func(target *net.UDPAddr) {
			if _, err := s.conn.WriteToUDP(raw, target); err != nil {
				util.LogWarning("failed to forward audio to %s: %v", target, err)
				return
			}
			s.metrics.PacketsForwarded.Inc()
			s.metrics.BytesForwarded.Add(float64(len(raw)))
		}(m.Addr)
	}

	s.publish(event.Event{
		Kind:      event.KindAudioPacket,
		UserID:    sess.UserID,
		ChannelID: sess.ChannelID,
		Sequence:  pkt.Sequence,
		Data:      pkt.Payload,
	})
}

// handleJoinChannel moves an authenticated user to another channel after
// re-checking membership and ban status for the target.
func (s *Server) handleJoinChannel(ctx context.Context, pkt *protocol.Packet, addr *net.UDPAddr) {
	sess, ok := s.requireSession(addr)
	if !ok {
		return
	}
	if pkt.ChannelID == "" {
		s.metrics.PacketsDropped.WithLabelValues("malformed").Inc()
		return
	}

	if err := s.authn.Authorize(ctx, sess.UserID, pkt.ChannelID); err != nil {
		reason := "auth_failed"
		if errors.Is(err, auth.ErrNotAMember) || errors.Is(err, auth.ErrBanned) {
			reason = err.Error()
		} else {
			util.LogError("join authorization failed for %s/%s: %v", sess.UserID, pkt.ChannelID, err)
		}
		s.sendError(addr, sess.UserID, pkt.ChannelID, reason)
		return
	}

	prev := sess.ChannelID
	sess, _ = s.authn.SetChannel(addr, pkt.ChannelID)
	s.registry.Join(sess.UserID, pkt.ChannelID, addr)
	s.syncGauges()

	util.LogInfo("user %s moved from channel %s to %s", sess.UserID, prev, pkt.ChannelID)

	s.sendPacket(protocol.NewAck(sess.UserID, pkt.ChannelID, pkt.Sequence, nowUnix()), addr)
	if prev != pkt.ChannelID {
		s.publish(event.Event{
			Kind:      event.KindUserLeft,
			UserID:    sess.UserID,
			ChannelID: prev,
			Addr:      addr.String(),
		})
	}
	s.publish(event.Event{
		Kind:      event.KindUserJoined,
		UserID:    sess.UserID,
		ChannelID: pkt.ChannelID,
		Addr:      addr.String(),
	})
}

func (s *Server) handleLeaveChannel(pkt *protocol.Packet, addr *net.UDPAddr) {
	sess, ok := s.requireSession(addr)
	if !ok {
		return
	}

	s.authn.Remove(addr)
	s.registry.Leave(sess.UserID)
	s.syncGauges()

	util.LogInfo("user %s left channel %s", sess.UserID, sess.ChannelID)

	s.sendPacket(protocol.NewAck(sess.UserID, sess.ChannelID, pkt.Sequence, nowUnix()), addr)
	s.publish(event.Event{
		Kind:      event.KindUserLeft,
		UserID:    sess.UserID,
		ChannelID: sess.ChannelID,
		Addr:      addr.String(),
	})
}

func (s *Server) handleSetMute(pkt *protocol.Packet, addr *net.UDPAddr) {
	sess, ok := s.requireSession(addr)
	if !ok {
		return
	}
	if len(pkt.Payload) < 1 {
		s.metrics.PacketsDropped.WithLabelValues("malformed").Inc()
		return
	}
	s.authn.Touch(addr)
	s.registry.Touch(addr)

	muted := pkt.Payload[0] != 0
	changed, found := s.registry.SetMute(sess.UserID, muted)
	if !found {
		util.LogWarning("mute request for unknown member %s from %s", sess.UserID, addr)
		return
	}
	if !changed {
		// Idempotent: repeating the current state is accepted silently.
		return
	}

	util.LogInfo("user %s %s in channel %s", sess.UserID, muteWord(muted), sess.ChannelID)
	s.publish(event.Event{
		Kind:      event.KindUserMuted,
		UserID:    sess.UserID,
		ChannelID: sess.ChannelID,
		Muted:     muted,
	})
}

func (s *Server) handleHeartbeat(pkt *protocol.Packet, addr *net.UDPAddr) {
	sess, ok := s.requireSession(addr)
	if !ok {
		return
	}
	s.authn.Touch(addr)
	s.registry.Touch(addr)
	s.sendPacket(protocol.NewAck(sess.UserID, sess.ChannelID, pkt.Sequence, nowUnix()), addr)
}

func muteWord(muted bool) string {
	if muted {
		return "muted"
	}
	return "unmuted"
}
