package server

import (
	"context"
	"time"

	"github.com/Armagedda/whisper-fleet-link/internal/event"
	"github.com/Armagedda/whisper-fleet-link/internal/util"
)

// runCleanup is the periodic sweep that evicts idle sessions and their
// presence entries. It shares the registry's locking discipline with the hot
// path, so running concurrently with broadcasts is safe.
func (s *Server) runCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepIdle()
			s.limiter.prune(s.cfg.UserTimeout)
		case <-ctx.Done():
			return
		}
	}
}

// sweepIdle removes every session idle beyond the configured timeout,
// removes the matching presence entries, and emits UserLeft for each.
func (s *Server) sweepIdle() {
	evicted := s.authn.SweepIdle(s.cfg.UserTimeout)
	for _, sess := range evicted {
		s.registry.Leave(sess.UserID)
		util.LogInfo("evicted idle user %s from channel %s (last activity %s ago)",
			sess.UserID, sess.ChannelID, time.Since(sess.LastActivity).Round(time.Second))
		s.publish(event.Event{
			Kind:      event.KindUserLeft,
			UserID:    sess.UserID,
			ChannelID: sess.ChannelID,
			Addr:      sess.Addr.String(),
		})
	}
	if len(evicted) > 0 {
		s.syncGauges()
	}
}
