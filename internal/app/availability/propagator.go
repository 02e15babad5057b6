// Package availability recomputes the cached availability flags of menu
// items and tables from current stock and order state.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/app/recipe"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"github.com/shopspring/decimal"
)

const (
	EntityMenuItem = "menu_item"
	EntityTable    = "table"
)

// Change is a flag that was actually rewritten.
type Change struct {
	Entity    string
	ID        int64
	Available bool
}

type Propagator struct {
	logger        logger.Logger
	ignoreMissing bool
}

type Option func(*Propagator)

// IgnoreMissingUnits treats a requirement on a vanished stock unit as
// satisfied instead of blocking the menu item.
func IgnoreMissingUnits() Option {
	return func(p *Propagator) { p.ignoreMissing = true }
}

func New(lgr logger.Logger, opts ...Option) *Propagator {
	p := &Propagator{logger: lgr}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Shortage is a requirement the current stock cannot cover. Unit is nil
// when the stock unit no longer exists.
type Shortage struct {
	Requirement domain.Requirement
	Unit        *domain.StockUnit
	Needed      decimal.Decimal
}

// FindShortage returns the first requirement, in stock unit order, that
// cannot cover quantity servings of the menu item, or nil when all can.
func (p *Propagator) FindShortage(ctx context.Context, repos interfaces.Repositories, menuItemID int64, quantity decimal.Decimal) (*Shortage, error) {
	reqs, err := recipe.New(repos.Recipes()).RequirementsFor(ctx, menuItemID)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		needed := req.Needed(quantity)
		unit, err := repos.Stock().FindByID(ctx, req.StockUnitID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				if p.ignoreMissing {
					continue
				}
				return &Shortage{Requirement: req, Needed: needed}, nil
			}
			return nil, fmt.Errorf("failed to read stock unit %d: %w", req.StockUnitID, err)
		}
		if unit.Quantity.LessThan(needed) {
			return &Shortage{Requirement: req, Unit: unit, Needed: needed}, nil
		}
	}
	return nil, nil
}

// MenuItemAvailable reports whether every requirement of the menu item can
// cover one more serving.
func (p *Propagator) MenuItemAvailable(ctx context.Context, repos interfaces.Repositories, menuItemID int64) (bool, error) {
	short, err := p.FindShortage(ctx, repos, menuItemID, decimal.NewFromInt(1))
	if err != nil {
		return false, err
	}
	return short == nil, nil
}

// RefreshMenuItems recomputes every menu item that depends on one of the
// given stock units and writes only the flags that changed.
func (p *Propagator) RefreshMenuItems(ctx context.Context, repos interfaces.Repositories, unitIDs []int64, requestID string) ([]Change, error) {
	resolver := recipe.New(repos.Recipes())

	seen := make(map[int64]bool)
	var itemIDs []int64
	for _, unitID := range unitIDs {
		ids, err := resolver.MenuItemsUsing(ctx, unitID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				itemIDs = append(itemIDs, id)
			}
		}
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })

	var changes []Change
	for _, id := range itemIDs {
		item, err := repos.Menu().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to read menu item %d: %w", id, err)
		}

		available, err := p.MenuItemAvailable(ctx, repos, id)
		if err != nil {
			return nil, err
		}
		if available == item.IsAvailable {
			continue
		}

		if err := repos.Menu().SetAvailable(ctx, id, available); err != nil {
			return nil, fmt.Errorf("failed to update availability of menu item %d: %w", id, err)
		}
		p.logger.Debug("menu_item_availability_changed", "Menu item availability recomputed", requestID, map[string]interface{}{
			"menu_item_id": id,
			"available":    available,
		})
		changes = append(changes, Change{Entity: EntityMenuItem, ID: id, Available: available})
	}
	return changes, nil
}

// RefreshTable re-derives a table's flag from all orders seated at it. A nil
// table id is a no-op.
func (p *Propagator) RefreshTable(ctx context.Context, repos interfaces.Repositories, tableID *int64, requestID string) ([]Change, error) {
	if tableID == nil {
		return nil, nil
	}

	table, err := repos.Tables().FindByID(ctx, *tableID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read table %d: %w", *tableID, err)
	}

	active, err := repos.Orders().CountActiveByTable(ctx, table.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active orders for table %d: %w", table.ID, err)
	}

	available := active == 0
	if available == table.IsAvailable {
		return nil, nil
	}
	if err := repos.Tables().SetAvailable(ctx, table.ID, available); err != nil {
		return nil, fmt.Errorf("failed to update availability of table %d: %w", table.ID, err)
	}
	p.logger.Debug("table_availability_changed", "Table availability recomputed", requestID, map[string]interface{}{
		"table_id":      table.ID,
		"active_orders": active,
		"available":     available,
	})
	return []Change{{Entity: EntityTable, ID: table.ID, Available: available}}, nil
}
