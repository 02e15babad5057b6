package domain

import (
	"github.com/shopspring/decimal"
)

type MenuCategory string

const (
	CategorySalads     MenuCategory = "salads"
	CategoryMains      MenuCategory = "mains"
	CategoryDesserts   MenuCategory = "desserts"
	CategoryDrinks     MenuCategory = "drinks"
	CategoryAppetizers MenuCategory = "appetizers"
)

// MenuItem is something a waiter can put on an order. IsAvailable is a cache
// recomputed from recipes and stock, never a source of truth.
type MenuItem struct {
	ID          int64
	Name        string
	Price       decimal.Decimal
	Category    MenuCategory
	PrinterID   *int64
	IsAvailable bool
}

// Table is a seat group. IsAvailable caches "no active order references it".
type Table struct {
	ID          int64
	Name        string
	Location    string
	Capacity    int
	Commission  decimal.Decimal
	IsAvailable bool
}

// Printer is a network thermal printer.
type Printer struct {
	ID         int64
	Name       string
	Address    string
	Port       int
	IsCheckout bool
	IsEnabled  bool
}
