package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fanders/microfinance/internal/domain/model"
	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/pkg/events"
	pgpkg "github.com/fanders/microfinance/pkg/postgres"
)

var (
	_ port.TxManager = (*TxManager)(nil)
	_ port.Store     = (*Store)(nil)
)

// Store binds the repositories to one querier: the pool for standalone
// reads, or a transaction inside WithinTx.
type Store struct {
	q pgpkg.Querier
}

// NewStore returns repositories that run directly against q.
func NewStore(q pgpkg.Querier) *Store {
	return &Store{q: q}
}

func (s *Store) Loans() port.LoanRepository                       { return NewLoanRepo(s.q) }
func (s *Store) Blotters() port.BlotterRepository                 { return NewBlotterRepo(s.q) }
func (s *Store) CollectionSheets() port.CollectionSheetRepository { return NewSheetRepo(s.q) }
func (s *Store) Outbox() events.OutboxRepository                  { return NewOutboxRepo(s.q) }

// TxManager runs each unit of work in one READ COMMITTED transaction bounded
// by a hard timeout. Row locks taken inside the unit serialize writers.
type TxManager struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *slog.Logger
}

// NewTxManager creates a TxManager. A zero timeout disables the bound.
func NewTxManager(pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) *TxManager {
	return &TxManager{pool: pool, timeout: timeout, logger: logger}
}

// WithinTx commits when fn returns nil and rolls back otherwise. Errors that
// already carry a ledger error kind are returned unchanged; anything else
// (begin, commit, timeout) is reported as model.ErrPersistence.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, s port.Store) error) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	err := pgpkg.WithTransaction(ctx, m.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, NewStore(tx))
	})
	if err == nil {
		return nil
	}
	if pgpkg.IsSerializationFailure(err) {
		m.logger.WarnContext(ctx, "transaction aborted by lock conflict", "error", err)
	}
	if hasKind(err) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrPersistence, err)
}

func hasKind(err error) bool {
	for _, kind := range []error{
		model.ErrValidation, model.ErrState, model.ErrIntegrity, model.ErrNotFound, model.ErrPersistence,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
