package repositories

import "context"

// TxFn runs within a transaction.
type TxFn func(ctx context.Context) error

// TransactionManager wraps a unit of work in a database transaction.
type TransactionManager interface {
	// ExecTx begins a transaction, runs fn with the transaction stored in
	// the context, and commits. Any error rolls back.
	ExecTx(ctx context.Context, fn TxFn) error
}
