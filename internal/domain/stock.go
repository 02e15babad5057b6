package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockUnit is an inventoried ingredient tracked by quantity. Quantity is
// only ever changed through the stock ledger.
type StockUnit struct {
	ID            int64
	Name          string
	Quantity      decimal.Decimal
	UnitOfMeasure string
}

// Requirement says how much of a stock unit one serving of a menu item uses.
type Requirement struct {
	MenuItemID  int64
	StockUnitID int64
	QtyPerUnit  decimal.Decimal
}

// UsageRecord is how much of a stock unit an order line has consumed.
// A record with zero quantity is deleted rather than kept.
type UsageRecord struct {
	StockUnitID int64
	OrderLineID int64
	Quantity    decimal.Decimal
	CreatedAt   time.Time
}

// Needed is the total consumption for the given line quantity. With a line
// quantity of LineQuantityScale decimals and a requirement of
// RequirementScale decimals the product always fits StockScale exactly.
func (r Requirement) Needed(quantity decimal.Decimal) decimal.Decimal {
	return quantity.Mul(r.QtyPerUnit)
}

// Decimal places stored for each kind of quantity.
const (
	LineQuantityScale = 2
	RequirementScale  = 3
	StockScale        = LineQuantityScale + RequirementScale
)

// fitsScale reports whether d has no more than places decimals.
func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}
