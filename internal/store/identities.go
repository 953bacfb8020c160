package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielolaszy/weave/pkg/models"
)

// LoadIdentities returns every persisted identity mapping ordered by identity.
func (s *Store) LoadIdentities(ctx context.Context) ([]models.IdentityMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vcs_identity, org_identity, authoritative
		FROM identities
		ORDER BY vcs_identity
	`)
	if err != nil {
		return nil, wrapDBError("query identities", err)
	}
	defer rows.Close()

	var out []models.IdentityMapping
	for rows.Next() {
		var m models.IdentityMapping
		if err := rows.Scan(&m.VCSIdentity, &m.OrgIdentity, &m.Authoritative); err != nil {
			return nil, wrapDBError("scan identity", err)
		}
		out = append(out, m)
	}
	return out, wrapDBError("iterate identities", rows.Err())
}

// SaveIdentities upserts mappings in one transaction. A later mapping
// overwrites an earlier one, except that a learned mapping never replaces
// an authoritative one.
func (s *Store) SaveIdentities(ctx context.Context, mappings []models.IdentityMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	now := formatTime(s.now())

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO identities (vcs_identity, org_identity, authoritative, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(vcs_identity) DO UPDATE SET
				org_identity = excluded.org_identity,
				authoritative = excluded.authoritative,
				updated_at = excluded.updated_at
			WHERE identities.authoritative = 0 OR excluded.authoritative = 1
		`)
		if err != nil {
			return wrapDBError("prepare identity upsert", err)
		}
		defer stmt.Close()

		for _, m := range mappings {
			if _, err := stmt.ExecContext(ctx, m.VCSIdentity, m.OrgIdentity, m.Authoritative, now); err != nil {
				return wrapDBError(fmt.Sprintf("upsert identity %s", m.VCSIdentity), err)
			}
		}
		return nil
	})
}

// DeleteIdentity removes the mapping for vcsIdentity.
func (s *Store) DeleteIdentity(ctx context.Context, vcsIdentity string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE vcs_identity = ?`, vcsIdentity)
	if err != nil {
		return wrapDBError(fmt.Sprintf("delete identity %s", vcsIdentity), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete identity %s: %w", vcsIdentity, ErrNotFound)
	}
	return nil
}
