package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/certen/ledger-kernel/internal/asc"
	"github.com/certen/ledger-kernel/internal/atom"
	"github.com/certen/ledger-kernel/internal/link"
	"github.com/certen/ledger-kernel/internal/membrane"
)

// NotifyChannel is the Postgres NOTIFY channel new entries are
// published on. The payload is a NotifyRef, kept under 1KiB so it stays
// well below the NOTIFY payload limit; the full entry is never sent
// through the channel.
const NotifyChannel = "ledger_events"

// NotifyRef is the lightweight reference published on NotifyChannel.
// Subscribers fetch the full entry by (ContainerID, Sequence) themselves.
type NotifyRef struct {
	ContainerID string `json:"container_id"`
	Sequence    uint64 `json:"sequence"`
	EntryHash   string `json:"entry_hash"`
}

// LedgerStore is the Append/Get surface over Client, wiring the
// membrane's validation pipeline into a retried, serializable
// transaction.
type LedgerStore struct {
	client      *Client
	maxRetries  int
	retryBase   time.Duration
}

// NewLedgerStore builds a LedgerStore with the given retry policy
// (defaults: 3 attempts, 10ms base backoff, per spec §4.5).
func NewLedgerStore(client *Client, maxRetries int, retryBase time.Duration) *LedgerStore {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryBase <= 0 {
		retryBase = 10 * time.Millisecond
	}
	return &LedgerStore{client: client, maxRetries: maxRetries, retryBase: retryBase}
}

// Append validates cm through the membrane and appends it to the
// ledger, making up to maxRetries attempts in total while serialization
// conflicts persist, with retryBase*attempt backoff after each failed
// attempt.
func (s *LedgerStore) Append(ctx context.Context, cm *link.Commit, rawAtom []byte, cert *asc.Certificate) (*link.Receipt, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		receipt, err := s.tryAppend(ctx, cm, rawAtom, cert)
		if err == nil {
			return receipt, nil
		}
		lastErr = err
		if !isSerializationConflict(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryBase * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("store: append failed after %d attempts: %w", s.maxRetries, lastErr)
}

func (s *LedgerStore) tryAppend(ctx context.Context, cm *link.Commit, rawAtom []byte, cert *asc.Certificate) (*link.Receipt, error) {
	tx, err := s.client.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	causal := txCausalChecker{tx: tx}
	m := membrane.New(txPactRepository(tx), causal)

	nowMs := time.Now().UnixMilli()
	validated, err := m.Validate(ctx, cm, rawAtom, cert, nowMs, nowMs)
	if err != nil {
		return nil, err
	}

	if rawAtom != nil {
		canonical, _, cerr := atom.CanonicalHash(rawAtom)
		if cerr != nil {
			return nil, cerr
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_atom (atom_hash, canonical) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			cm.AtomHash, canonical); err != nil {
			return nil, fmt.Errorf("store: insert atom: %w", err)
		}
	}

	entryHashHex := hex.EncodeToString(validated.EntryHash[:])
	linkHashHex := hex.EncodeToString(validated.LinkHash[:])

	var pactID sql.NullString
	if cm.Pact != nil {
		pactID = sql.NullString{String: cm.Pact.PactID, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entry (container_id, sequence, entry_hash, link_hash, previous_hash,
			atom_hash, intent_class, physics_delta, author_pubkey, signature, pact_id, ts_unix_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		cm.ContainerID, cm.ExpectedSequence, entryHashHex, linkHashHex, cm.PreviousHash,
		cm.AtomHash, int16(cm.IntentClass), validated.Delta.String(), cm.AuthorPubKey, cm.Signature,
		pactID, nowMs); err != nil {
		return nil, fmt.Errorf("store: insert entry: %w", err)
	}

	if err := causal.advance(ctx, cm.ContainerID, entryHashHex); err != nil {
		return nil, err
	}

	ref := NotifyRef{ContainerID: cm.ContainerID, Sequence: cm.ExpectedSequence, EntryHash: entryHashHex}
	payload, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("store: marshal notify payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(payload)); err != nil {
		return nil, fmt.Errorf("store: notify: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}

	return &link.Receipt{
		ContainerID: cm.ContainerID,
		Sequence:    cm.ExpectedSequence,
		EntryHash:   entryHashHex,
		TsUnixMs:    nowMs,
	}, nil
}

// isSerializationConflict reports whether err is a Postgres
// serialization_failure (40001) or deadlock_detected (40P01), the two
// conditions Append retries rather than surfacing to the caller.
func isSerializationConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
