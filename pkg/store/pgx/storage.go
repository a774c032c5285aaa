package pgx

import (
	"context"
	"sync"

	"github.com/terra-graph/newsgraph/pkg/ai"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements store.Storage on PostgreSQL with pgvector embeddings.
// Entity and relationship merges are read-modify-write cycles, so a mutex
// serializes them; everything else runs without the lock.
type Store struct {
	conn     pgxIConn
	aiClient ai.Client
	dbLock   sync.Mutex
}

// NewStore creates a Store on an existing connection or pool. The AI client
// generates description embeddings on merge; it may be nil for read-only
// consumers, in which case embeddings are left untouched.
func NewStore(conn pgxIConn, aiClient ai.Client) *Store {
	return &Store{
		conn:     conn,
		aiClient: aiClient,
		dbLock:   sync.Mutex{},
	}
}
