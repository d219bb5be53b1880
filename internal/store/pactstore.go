package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/certen/ledger-kernel/internal/link"
	"github.com/certen/ledger-kernel/internal/pact"
)

// queryer is satisfied by both *sql.DB and *sql.Tx, so pact lookups can
// run either against the pool directly or inside an in-flight Append
// transaction (so a pact committed concurrently can't be read
// half-applied).
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PactRepository implements pact.Store against Postgres.
type PactRepository struct {
	q queryer
}

// NewPactRepository builds a repository reading through the pool.
func NewPactRepository(c *Client) *PactRepository {
	return &PactRepository{q: c.db}
}

func txPactRepository(tx *sql.Tx) *PactRepository {
	return &PactRepository{q: tx}
}

// GetPact implements pact.Store.
func (r *PactRepository) GetPact(ctx context.Context, pactID string) (*pact.Pact, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT pact_id, scope_type, scope_value, intent_classes, threshold,
		       signers, not_before_ms, not_after_ms, signature_scheme
		FROM pact WHERE pact_id = $1`, pactID)

	var p pact.Pact
	var scopeType string
	var classes []int64
	var signers []string
	var scheme string
	if err := row.Scan(&p.PactID, &scopeType, &p.ScopeValue, pq.Array(&classes), &p.Threshold,
		pq.Array(&signers), &p.NotBeforeMs, &p.NotAfterMs, &scheme); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get pact: %w", err)
	}

	p.ScopeType = pact.ScopeType(scopeType)
	p.SignatureScheme = pact.SignatureScheme(scheme)
	p.Signers = signers
	p.IntentClasses = make([]link.IntentClass, len(classes))
	for i, c := range classes {
		p.IntentClasses[i] = link.IntentClass(c)
	}
	return &p, nil
}

// Put inserts or replaces a pact record, for bootstrap and administrative use.
func (r *PactRepository) Put(ctx context.Context, db *sql.DB, p *pact.Pact) error {
	classes := make([]int64, len(p.IntentClasses))
	for i, c := range p.IntentClasses {
		classes[i] = int64(c.Byte())
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO pact (pact_id, scope_type, scope_value, intent_classes, threshold, signers, not_before_ms, not_after_ms, signature_scheme)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (pact_id) DO UPDATE SET
			scope_type = EXCLUDED.scope_type,
			scope_value = EXCLUDED.scope_value,
			intent_classes = EXCLUDED.intent_classes,
			threshold = EXCLUDED.threshold,
			signers = EXCLUDED.signers,
			not_before_ms = EXCLUDED.not_before_ms,
			not_after_ms = EXCLUDED.not_after_ms,
			signature_scheme = EXCLUDED.signature_scheme`,
		p.PactID, string(p.ScopeType), p.ScopeValue, pq.Array(classes), p.Threshold,
		pq.Array(p.Signers), p.NotBeforeMs, p.NotAfterMs, string(p.SignatureScheme))
	if err != nil {
		return fmt.Errorf("store: put pact: %w", err)
	}
	return nil
}
