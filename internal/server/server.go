// Package server owns the UDP socket and routes decoded packets between the
// authenticator, the presence registry, and the channel peers.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Armagedda/whisper-fleet-link/internal/auth"
	"github.com/Armagedda/whisper-fleet-link/internal/config"
	"github.com/Armagedda/whisper-fleet-link/internal/event"
	"github.com/Armagedda/whisper-fleet-link/internal/presence"
	"github.com/Armagedda/whisper-fleet-link/internal/protocol"
	"github.com/Armagedda/whisper-fleet-link/internal/util"
)

// Server is the UDP packet router. One instance owns one socket.
type Server struct {
	cfg      *config.Config
	authn    *auth.Authenticator
	registry *presence.Registry
	bus      *event.Bus
	metrics  *Metrics
	limiter  *replyLimiter

	mu   sync.Mutex // guards conn between Run and LocalAddr
	conn *net.UDPConn
}

// New wires a server from its collaborators. Run must be called to bind the
// socket and start serving.
func New(cfg *config.Config, authn *auth.Authenticator, registry *presence.Registry, bus *event.Bus, metrics *Metrics) *Server {
	return &Server{
		cfg:      cfg,
		authn:    authn,
		registry: registry,
		bus:      bus,
		metrics:  metrics,
		limiter:  newReplyLimiter(),
	}
}

// LocalAddr returns the bound socket address, or nil before Run binds it.
func (s *Server) LocalAddr() *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Run binds the UDP socket and serves until ctx is cancelled. A bind failure
// is the only fatal outcome; per-packet errors never terminate the loop.
func (s *Server) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("invalid bind address %q: %w", s.cfg.BindAddr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", s.cfg.BindAddr, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := conn.SetReadBuffer(s.cfg.SocketBufferSize); err != nil {
		util.LogWarning("failed to set socket read buffer: %v", err)
	}
	if err := conn.SetWriteBuffer(s.cfg.SocketBufferSize); err != nil {
		util.LogWarning("failed to set socket write buffer: %v", err)
	}

	// Close the socket when the context is done so ReadFromUDP returns.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go s.runCleanup(ctx)

	util.LogInfo("voice server listening on %s", conn.LocalAddr())

	// One extra byte so an oversized datagram is distinguishable from one
	// that exactly fills the configured maximum.
	buf := make([]byte, s.cfg.MaxPacketSize+1)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil // normal shutdown
			default:
				return fmt.Errorf("UDP read error: %w", err)
			}
		}

		s.metrics.PacketsReceived.Inc()

		if n > s.cfg.MaxPacketSize {
			s.metrics.PacketsDropped.WithLabelValues("too_large").Inc()
			util.LogDebug("dropping oversized datagram from %s (%d bytes)", addr, n)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		go s.handleDatagram(ctx, data, addr)
	}
}

// sendPacket encodes and sends a packet to addr. Send failures are logged
// and otherwise ignored; UDP gives no delivery guarantee anyway.
func (s *Server) sendPacket(pkt *protocol.Packet, addr *net.UDPAddr) {
	data, err := protocol.Encode(pkt)
	if err != nil {
		util.LogError("failed to encode %#02x packet for %s: %v", pkt.Type, addr, err)
		return
	}
	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		util.LogWarning("failed to send %#02x packet to %s: %v", pkt.Type, addr, err)
	}
}

// sendError replies with an Error packet carrying a machine-stable reason,
// subject to the per-address rate limit.
func (s *Server) sendError(addr *net.UDPAddr, userID, channelID, reason string) {
	if !s.limiter.allow(addr.String()) {
		s.metrics.PacketsDropped.WithLabelValues("reply_rate_limited").Inc()
		return
	}
	s.metrics.ErrorRepliesSent.Inc()
	s.sendPacket(protocol.NewError(userID, channelID, reason, nowUnix()), addr)
	s.publish(event.Event{
		Kind:      event.KindError,
		UserID:    userID,
		ChannelID: channelID,
		Addr:      addr.String(),
		Error:     reason,
	})
}

// publish forwards an event to the bus, counting drops by slow subscribers.
func (s *Server) publish(ev event.Event) {
	if dropped := s.bus.Publish(ev); dropped > 0 {
		s.metrics.EventsDropped.Add(float64(dropped))
	}
}

// syncGauges refreshes the session/channel gauges after membership changes.
func (s *Server) syncGauges() {
	channels, _ := s.registry.Counts()
	s.metrics.ActiveSessions.Set(float64(s.authn.Count()))
	s.metrics.ActiveChannels.Set(float64(channels))
}

func nowUnix() uint32 {
	return uint32(time.Now().Unix())
}
