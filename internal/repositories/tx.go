package repositories

import (
	"context"
	"fmt"

	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/jmoiron/sqlx"
)

// TxManager runs a unit of work atomically.
type TxManager interface {
	// WithinTx calls fn with a transactional executor. A non-nil error from fn,
	// or a panic, rolls the transaction back.
	WithinTx(ctx context.Context, fn func(exec SQLExecutor) error) error
}

type sqlTxManager struct {
	db *sqlx.DB
}

// NewTxManager creates a TxManager over a connection pool.
func NewTxManager(db *sqlx.DB) TxManager {
	return &sqlTxManager{db: db}
}

func (m *sqlTxManager) WithinTx(ctx context.Context, fn func(exec SQLExecutor) error) (err error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrDatabaseError, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				utils.LogError(rbErr, "TxManager: rollback failed")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", ErrDatabaseError, err)
	}
	return nil
}
