package store

import (
	"context"
	"fmt"

	"github.com/emberlane/chatvault/internal/model"
)

// Stats is the repository-wide summary returned by the stats façade
// operation (spec.md §4.6): totals by provider, total messages, and the
// role distribution across all stored messages.
type Stats struct {
	TotalConversations int
	TotalMessages      int
	ByProvider         map[model.ProviderTag]int
	ByRole             map[model.Role]int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByProvider: make(map[model.ProviderTag]int),
		ByRole:     make(map[model.Role]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&stats.TotalConversations); err != nil {
		return Stats{}, fmt.Errorf("store: count conversations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&stats.TotalMessages); err != nil {
		return Stats{}, fmt.Errorf("store: count messages: %w", err)
	}

	providerRows, err := s.db.QueryContext(ctx, `
		SELECT p.tag, COUNT(c.id)
		FROM providers p LEFT JOIN conversations c ON c.provider_id = p.id
		GROUP BY p.tag`)
	if err != nil {
		return Stats{}, fmt.Errorf("store: count conversations by provider: %w", err)
	}
	defer providerRows.Close()

	for providerRows.Next() {
		var tag string
		var count int
		if err := providerRows.Scan(&tag, &count); err != nil {
			return Stats{}, fmt.Errorf("store: scan provider count: %w", err)
		}
		stats.ByProvider[model.ProviderTag(tag)] = count
	}
	if err := providerRows.Err(); err != nil {
		return Stats{}, fmt.Errorf("store: iterate provider counts: %w", err)
	}

	roleRows, err := s.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM messages GROUP BY role`)
	if err != nil {
		return Stats{}, fmt.Errorf("store: count messages by role: %w", err)
	}
	defer roleRows.Close()

	for roleRows.Next() {
		var role string
		var count int
		if err := roleRows.Scan(&role, &count); err != nil {
			return Stats{}, fmt.Errorf("store: scan role count: %w", err)
		}
		stats.ByRole[model.Role(role)] = count
	}
	if err := roleRows.Err(); err != nil {
		return Stats{}, fmt.Errorf("store: iterate role counts: %w", err)
	}

	return stats, nil
}

// RebuildFTS rebuilds the messages_fts index from scratch. Triggers keep
// it synchronized during normal operation; this exists only as an
// operator tool for corrupt-index recovery (spec.md §9 design notes).
func (s *Store) RebuildFTS(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages_fts(messages_fts) VALUES ('rebuild')`)
	if err != nil {
		return fmt.Errorf("store: rebuild fts index: %w", err)
	}
	return nil
}
