package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/lib/pq"

	"github.com/certen/ledger-kernel/internal/asc"
	"github.com/certen/ledger-kernel/internal/link"
)

// ASCRepository reads and writes Agent/Authorization Scope Certificates.
type ASCRepository struct {
	client *Client
}

// NewASCRepository builds a repository over the connection pool.
func NewASCRepository(c *Client) *ASCRepository {
	return &ASCRepository{client: c}
}

// Get looks up a certificate by id.
func (r *ASCRepository) Get(ctx context.Context, id string) (*asc.Certificate, error) {
	row := r.client.db.QueryRowContext(ctx, `
		SELECT id, owner_kind, container_ids, classes, max_delta, not_before_ms, not_after_ms, revoked
		FROM asc_certificate WHERE id = $1`, id)

	var c asc.Certificate
	var ownerKind string
	var containerIDs []string
	var classes []int64
	var maxDelta sql.NullString
	if err := row.Scan(&c.ID, &ownerKind, pq.Array(&containerIDs), pq.Array(&classes),
		&maxDelta, &c.NotBeforeMs, &c.NotAfterMs, &c.Revoked); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrASCNotFound
		}
		return nil, fmt.Errorf("store: get asc: %w", err)
	}

	c.OwnerKind = asc.OwnerKind(ownerKind)
	c.ContainerIDs = containerIDs
	c.Classes = make([]link.IntentClass, len(classes))
	for i, cl := range classes {
		c.Classes[i] = link.IntentClass(cl)
	}
	if maxDelta.Valid {
		d, ok := new(big.Int).SetString(maxDelta.String, 10)
		if !ok {
			return nil, fmt.Errorf("store: invalid max_delta %q for asc %s", maxDelta.String, id)
		}
		c.MaxDelta = d
	}
	return &c, nil
}

// Put inserts or replaces a certificate.
func (r *ASCRepository) Put(ctx context.Context, c *asc.Certificate) error {
	classes := make([]int64, len(c.Classes))
	for i, cl := range c.Classes {
		classes[i] = int64(cl.Byte())
	}
	var maxDelta sql.NullString
	if c.MaxDelta != nil {
		maxDelta = sql.NullString{String: c.MaxDelta.String(), Valid: true}
	}
	containerIDs := c.ContainerIDs
	if containerIDs == nil {
		containerIDs = []string{}
	}
	_, err := r.client.db.ExecContext(ctx, `
		INSERT INTO asc_certificate (id, owner_kind, container_ids, classes, max_delta, not_before_ms, not_after_ms, revoked)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			owner_kind = EXCLUDED.owner_kind,
			container_ids = EXCLUDED.container_ids,
			classes = EXCLUDED.classes,
			max_delta = EXCLUDED.max_delta,
			not_before_ms = EXCLUDED.not_before_ms,
			not_after_ms = EXCLUDED.not_after_ms,
			revoked = EXCLUDED.revoked`,
		c.ID, string(c.OwnerKind), pq.Array(containerIDs), pq.Array(classes), maxDelta,
		c.NotBeforeMs, c.NotAfterMs, c.Revoked)
	if err != nil {
		return fmt.Errorf("store: put asc: %w", err)
	}
	return nil
}

// Revoke marks a certificate revoked without otherwise altering it.
func (r *ASCRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.client.db.ExecContext(ctx, `UPDATE asc_certificate SET revoked = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: revoke asc: %w", err)
	}
	return nil
}
