package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"

	"github.com/jackc/pgx/v5"
)

// Store implements interfaces.Store on a pgx pool. Outside WithinTx every
// call autocommits.
type Store struct {
	db DB
	*repositories
}

var _ interfaces.Store = (*Store)(nil)

func NewStore(db DB) *Store {
	return &Store{db: db, repositories: newRepositories(db)}
}

func (s *Store) WithinTx(ctx context.Context, fn func(repos interfaces.Repositories) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type repositories struct {
	q Querier
}

func newRepositories(q Querier) *repositories {
	return &repositories{q: q}
}

func (r *repositories) Stock() interfaces.StockRepository { return &stockRepository{q: r.q} }
func (r *repositories) Usage() interfaces.UsageRepository { return &usageRepository{q: r.q} }
func (r *repositories) Recipes() interfaces.RecipeRepository { return &recipeRepository{q: r.q} }
func (r *repositories) Menu() interfaces.MenuRepository { return &menuRepository{q: r.q} }
func (r *repositories) Tables() interfaces.TableRepository { return &tableRepository{q: r.q} }
func (r *repositories) Orders() interfaces.OrderRepository { return &orderRepository{q: r.q} }
func (r *repositories) Lines() interfaces.OrderLineRepository { return &orderLineRepository{q: r.q} }
func (r *repositories) Printers() interfaces.PrinterRepository { return &printerRepository{q: r.q} }
func (r *repositories) PrintJobs() interfaces.PrintJobRepository { return &printJobRepository{q: r.q} }

// scanErr maps a missing row onto domain.ErrNotFound.
func scanErr(err error, kind string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", kind, id, err)
}

// affected turns a zero-row write into domain.ErrNotFound.
func affected(tag CommandTag, kind string, id int64) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}
