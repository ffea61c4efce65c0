// Package memdb provides transaction support for the in-memory stores used
// in tests and lightweight deployments. A transaction keeps an undo journal;
// Rollback replays it in reverse so writes made through stores bound to the
// transaction disappear.
package memdb

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/jcpaschoal/tenantauth/business/sdk/sqldb"
)

// Beginner implements sqldb.Beginner for the in-memory stores.
type Beginner struct{}

// NewBeginner constructs a beginner for in-memory transactions.
func NewBeginner() Beginner {
	return Beginner{}
}

// Begin starts a new in-memory transaction.
func (Beginner) Begin() (sqldb.CommitRollbacker, error) {
	return &Tx{}, nil
}

// Tx is an in-memory transaction.
type Tx struct {
	mu   sync.Mutex
	undo []func()
	done bool
}

// OnRollback registers fn to run if the transaction is rolled back.
func (tx *Tx) OnRollback(fn func()) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.undo = append(tx.undo, fn)
}

// Commit keeps every write made in the transaction.
func (tx *Tx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return sql.ErrTxDone
	}

	tx.done = true
	tx.undo = nil

	return nil
}

// Rollback undoes every write made in the transaction, newest first.
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return sql.ErrTxDone
	}

	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}

	tx.done = true
	tx.undo = nil

	return nil
}

// GetTx extracts the in-memory transaction from the domain transactor.
func GetTx(tx sqldb.CommitRollbacker) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("Transactor(%T) not of a type *memdb.Tx", tx)
	}

	return mtx, nil
}
