package pgx

import (
	"context"
	"fmt"

	"github.com/terra-graph/newsgraph/pkg/common"
)

const insertClaimSQL = `
INSERT INTO claims (subject, object, claim_type, status, description, period, quotes, item_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

// InsertClaims appends claims. No dedup: the same claim extracted from two
// documents is two rows.
func (s *Store) InsertClaims(ctx context.Context, claims []common.Claim) error {
	if len(claims) == 0 {
		return nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrMerge, err)
	}
	defer tx.Rollback(ctx)

	for _, c := range claims {
		_, err := tx.Exec(ctx, insertClaimSQL,
			c.Subject, c.Object, string(c.Type), string(c.Status),
			c.Description, c.Period, c.Quotes, c.ItemID,
		)
		if err != nil {
			return fmt.Errorf("%w: insert claim for %s: %v", common.ErrMerge, c.Subject, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrMerge, err)
	}
	return nil
}
