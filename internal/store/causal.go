package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/certen/ledger-kernel/internal/kernelcrypto"
)

// txCausalChecker reads (and, on first use, initializes) a container's
// chain head with a row lock held for the lifetime of the transaction,
// so two concurrent appends to the same container serialize on this row
// rather than both observing the same "next sequence".
type txCausalChecker struct {
	tx *sql.Tx
}

func (c txCausalChecker) ChainHead(ctx context.Context, containerID string) (uint64, string, error) {
	var next uint64
	var prev string
	err := c.tx.QueryRowContext(ctx,
		`SELECT next_sequence, previous_hash FROM container_head WHERE container_id = $1 FOR UPDATE`,
		containerID).Scan(&next, &prev)
	if err == nil {
		return next, prev, nil
	}
	if err != sql.ErrNoRows {
		return 0, "", fmt.Errorf("store: read container head: %w", err)
	}

	// First commit ever seen for this container: seed the head row at
	// genesis and re-read under the lock just taken.
	_, err = c.tx.ExecContext(ctx,
		`INSERT INTO container_head (container_id, next_sequence, previous_hash) VALUES ($1, 1, $2)
		 ON CONFLICT (container_id) DO NOTHING`,
		containerID, kernelcrypto.GenesisHash)
	if err != nil {
		return 0, "", fmt.Errorf("store: seed container head: %w", err)
	}
	err = c.tx.QueryRowContext(ctx,
		`SELECT next_sequence, previous_hash FROM container_head WHERE container_id = $1 FOR UPDATE`,
		containerID).Scan(&next, &prev)
	if err != nil {
		return 0, "", fmt.Errorf("store: read seeded container head: %w", err)
	}
	return next, prev, nil
}

func (c txCausalChecker) advance(ctx context.Context, containerID string, newHead string) error {
	_, err := c.tx.ExecContext(ctx,
		`UPDATE container_head SET next_sequence = next_sequence + 1, previous_hash = $2 WHERE container_id = $1`,
		containerID, newHead)
	if err != nil {
		return fmt.Errorf("store: advance container head: %w", err)
	}
	return nil
}
