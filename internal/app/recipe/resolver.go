package recipe

import (
	"context"
	"fmt"
	"sort"

	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
)

// Resolver maps menu items to the stock they consume.
type Resolver struct {
	recipes interfaces.RecipeRepository
}

func New(recipes interfaces.RecipeRepository) *Resolver {
	return &Resolver{recipes: recipes}
}

// RequirementsFor lists what one serving of a menu item needs, ordered by
// stock unit id so that concurrent line operations lock rows in the same
// order.
func (r *Resolver) RequirementsFor(ctx context.Context, menuItemID int64) ([]domain.Requirement, error) {
	reqs, err := r.recipes.RequirementsFor(ctx, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipe for menu item %d: %w", menuItemID, err)
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].StockUnitID < reqs[j].StockUnitID })
	return reqs, nil
}

// MenuItemsUsing lists menu items with a requirement on the stock unit.
func (r *Resolver) MenuItemsUsing(ctx context.Context, stockUnitID int64) ([]int64, error) {
	ids, err := r.recipes.MenuItemsUsing(ctx, stockUnitID)
	if err != nil {
		return nil, fmt.Errorf("failed to find menu items using stock unit %d: %w", stockUnitID, err)
	}
	return ids, nil
}
