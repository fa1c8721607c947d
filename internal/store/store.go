// Package store provides access to channel membership and ban facts.
//
// The facts themselves are owned by the channel management API and its
// relational schema; this package only reads them. Nothing here is cached
// beyond a single call, so role and ban changes take effect on the next
// handshake rather than instantaneously.
package store

import "context"

// Membership answers the two questions the voice core asks at handshake
// time. Implementations must be safe for concurrent use.
type Membership interface {
	// IsMember reports whether userID belongs to channelID in any role
	// (owner, moderator, or plain member).
	IsMember(ctx context.Context, userID, channelID string) (bool, error)

	// IsBanned reports whether userID is banned from channelID.
	IsBanned(ctx context.Context, userID, channelID string) (bool, error)
}
