package repositories

import (
	"github.com/google/uuid"

	"github.com/vidshare/backend/internal/db"
)

// PostgresStore bundles the Postgres repositories so one value satisfies every
// service store contract, mirroring MemoryStore.
type PostgresStore struct {
	*PostgresAccountRepository
	*PostgresLedgerRepository
	*PostgresWorkRepository
	*PostgresCommentRepository
	*PostgresAnnotationRepository
	*PostgresFollowRepository
}

// NewPostgresStore wires every repository over pool, using runner for serializable sections.
func NewPostgresStore(pool db.Pool, runner *db.TxRunner) *PostgresStore {
	return &PostgresStore{
		PostgresAccountRepository:    NewPostgresAccountRepository(pool),
		PostgresLedgerRepository:     NewPostgresLedgerRepository(runner),
		PostgresWorkRepository:       NewPostgresWorkRepository(pool, runner),
		PostgresCommentRepository:    NewPostgresCommentRepository(pool),
		PostgresAnnotationRepository: NewPostgresAnnotationRepository(pool),
		PostgresFollowRepository:     NewPostgresFollowRepository(pool, runner),
	}
}

// validID reports whether id can name a row. Every key column is a UUID, so other
// strings match nothing, the same as an unknown id in the memory store.
func validID(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
