package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads membership and ban facts from the relational store
// owned by the channel management API. The voice core never writes to it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pgx pool to the given DSN and verifies the
// connection with a ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// IsMember reports whether the user holds any role in the channel. Channel
// owners are recorded on the channels table, everyone else on
// channel_members.
func (s *PostgresStore) IsMember(ctx context.Context, userID, channelID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM channels WHERE id = $2 AND owner_id = $1
			UNION ALL
			SELECT 1 FROM channel_members WHERE user_id = $1 AND channel_id = $2
		)`
	var ok bool
	if err := s.pool.QueryRow(ctx, q, userID, channelID).Scan(&ok); err != nil {
		return false, fmt.Errorf("membership query for %s/%s: %w", userID, channelID, err)
	}
	return ok, nil
}

// IsBanned reports whether the user appears on the channel's ban list.
func (s *PostgresStore) IsBanned(ctx context.Context, userID, channelID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM channel_bans WHERE user_id = $1 AND channel_id = $2)`
	var banned bool
	if err := s.pool.QueryRow(ctx, q, userID, channelID).Scan(&banned); err != nil {
		return false, fmt.Errorf("ban query for %s/%s: %w", userID, channelID, err)
	}
	return banned, nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
