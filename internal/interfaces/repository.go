package interfaces

import (
	"context"

	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/shopspring/decimal"
)

// Repository ports (Adapter/Postgres, Adapter/Memory). Lookups of a missing
// row return an error wrapping domain.ErrNotFound.

type StockRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.StockUnit, error)
	// SubtractIfAvailable subtracts amount only where on-hand >= amount, in
	// one statement. It reports whether a row matched.
	SubtractIfAvailable(ctx context.Context, id int64, amount decimal.Decimal) (bool, error)
	// Add adds amount unconditionally and reports whether the row exists.
	Add(ctx context.Context, id int64, amount decimal.Decimal) (bool, error)
}

type UsageRepository interface {
	Find(ctx context.Context, stockUnitID, orderLineID int64) (*domain.UsageRecord, error)
	Save(ctx context.Context, rec *domain.UsageRecord) error
	Delete(ctx context.Context, stockUnitID, orderLineID int64) error
	ListByLine(ctx context.Context, orderLineID int64) ([]domain.UsageRecord, error)
}

type RecipeRepository interface {
	RequirementsFor(ctx context.Context, menuItemID int64) ([]domain.Requirement, error)
	MenuItemsUsing(ctx context.Context, stockUnitID int64) ([]int64, error)
}

type MenuRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.MenuItem, error)
	SetAvailable(ctx context.Context, id int64, available bool) error
}

type TableRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Table, error)
	SetAvailable(ctx context.Context, id int64, available bool) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id int64) (*domain.Order, error)
	UpdateTotals(ctx context.Context, order *domain.Order) error
	UpdateStatus(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, id int64) error
	CountActiveByTable(ctx context.Context, tableID int64) (int, error)
	LogStatus(ctx context.Context, orderID int64, status domain.OrderStatus, changedBy string) error
	GetStatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusLog, error)
}

type OrderLineRepository interface {
	Create(ctx context.Context, line *domain.OrderLine) error
	FindByID(ctx context.Context, id int64) (*domain.OrderLine, error)
	UpdateQuantity(ctx context.Context, line *domain.OrderLine) error
	Delete(ctx context.Context, id int64) error
	ListByOrder(ctx context.Context, orderID int64) ([]domain.OrderLine, error)
}

type PrinterRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Printer, error)
	// FindCheckout returns the first enabled checkout printer.
	FindCheckout(ctx context.Context) (*domain.Printer, error)
}

type PrintJobRepository interface {
	Create(ctx context.Context, job *domain.PrintJob) error
	FindByID(ctx context.Context, id int64) (*domain.PrintJob, error)
	// FindPending returns pending jobs oldest first.
	FindPending(ctx context.Context) ([]*domain.PrintJob, error)
	// Claim moves a job from pending to printing and reports whether it did.
	Claim(ctx context.Context, id int64) (bool, error)
	MarkPrinted(ctx context.Context, id int64) error
	// MarkFailed returns a job to pending with the error attached.
	MarkFailed(ctx context.Context, id int64, reason string) error
	CancelPending(ctx context.Context) (int, error)
	// RequeuePrinting returns jobs stuck in printing back to pending.
	RequeuePrinting(ctx context.Context) (int, error)
}

// Repositories is one consistent view of storage, either autocommit or
// scoped to a transaction.
type Repositories interface {
	Stock() StockRepository
	Usage() UsageRepository
	Recipes() RecipeRepository
	Menu() MenuRepository
	Tables() TableRepository
	Orders() OrderRepository
	Lines() OrderLineRepository
	Printers() PrinterRepository
	PrintJobs() PrintJobRepository
}

// Store runs fn inside one transaction. If fn returns an error every change
// made through the passed repositories is rolled back.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
