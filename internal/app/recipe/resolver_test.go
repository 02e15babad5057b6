package recipe

import (
	"context"
	"testing"

	"github.com/YelzhanWeb/waiter/internal/adapter/memory"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirementsForIsOrderedByStockUnit(t *testing.T) {
	store := memory.NewStore()
	store.AddRequirement(domain.Requirement{MenuItemID: 1, StockUnitID: 30, QtyPerUnit: decimal.NewFromInt(1)})
	store.AddRequirement(domain.Requirement{MenuItemID: 1, StockUnitID: 10, QtyPerUnit: decimal.NewFromInt(2)})
	store.AddRequirement(domain.Requirement{MenuItemID: 2, StockUnitID: 10, QtyPerUnit: decimal.NewFromInt(3)})

	reqs, err := New(store.Recipes()).RequirementsFor(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, int64(10), reqs[0].StockUnitID)
	assert.Equal(t, int64(30), reqs[1].StockUnitID)
}

func TestRequirementsForUnknownItemIsEmpty(t *testing.T) {
	reqs, err := New(memory.NewStore().Recipes()).RequirementsFor(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestMenuItemsUsing(t *testing.T) {
	store := memory.NewStore()
	store.AddRequirement(domain.Requirement{MenuItemID: 1, StockUnitID: 10, QtyPerUnit: decimal.NewFromInt(1)})
	store.AddRequirement(domain.Requirement{MenuItemID: 2, StockUnitID: 10, QtyPerUnit: decimal.NewFromInt(1)})
	store.AddRequirement(domain.Requirement{MenuItemID: 3, StockUnitID: 20, QtyPerUnit: decimal.NewFromInt(1)})

	ids, err := New(store.Recipes()).MenuItemsUsing(context.Background(), 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}
