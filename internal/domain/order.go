package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Order represents a table order opened by a waiter
type Order struct {
	ID         int64
	UserID     int64
	WaiterName string
	TableID    *int64
	Status     OrderStatus
	Subtotal   decimal.Decimal
	Total      decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderLine represents one menu item on an order
type OrderLine struct {
	ID         int64
	OrderID    int64
	MenuItemID int64
	Quantity   decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewOrder creates a pending order for a waiter, optionally seated at a table
func NewOrder(userID int64, tableID *int64) (*Order, error) {
	if userID <= 0 {
		return nil, NewValidationError("user_id", "user is required")
	}
	now := time.Now().UTC()
	return &Order{
		UserID:    userID,
		TableID:   tableID,
		Status:    OrderStatusPending,
		Subtotal:  decimal.Zero,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewOrderLine validates the quantity and builds a line for an order
func NewOrderLine(orderID, menuItemID int64, quantity decimal.Decimal) (*OrderLine, error) {
	if err := ValidateLineQuantity(quantity); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &OrderLine{
		OrderID:    orderID,
		MenuItemID: menuItemID,
		Quantity:   quantity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func ValidateLineQuantity(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return NewValidationError("quantity", "quantity must be greater than zero")
	}
	if !fitsScale(quantity, LineQuantityScale) {
		return NewValidationError("quantity", "quantity may have at most %d decimal places", LineQuantityScale)
	}
	return nil
}

// TransitionTo transitions the order to a new status
func (o *Order) TransitionTo(newStatus OrderStatus) error {
	if !o.CanTransitionTo(newStatus) {
		return ErrInvalidStatusTransition
	}
	o.Status = newStatus
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// CanTransitionTo checks if the order can transition to the new status
func (o *Order) CanTransitionTo(newStatus OrderStatus) bool {
	validTransitions := map[OrderStatus][]OrderStatus{
		OrderStatusPending:    {OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled},
		OrderStatusCompleted:  {},
		OrderStatusCancelled:  {},
	}

	for _, s := range validTransitions[o.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

// LineTotal is the price of a line at the menu item's current price.
func LineTotal(quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price)
}

// ApplyCommission returns subtotal plus the table's commission percentage.
func ApplyCommission(subtotal, commissionPercent decimal.Decimal) decimal.Decimal {
	if commissionPercent.IsZero() {
		return subtotal
	}
	return subtotal.Add(subtotal.Mul(commissionPercent).Div(hundred))
}

// SetTotals writes the derived amounts and reports whether they changed.
func (o *Order) SetTotals(subtotal, total decimal.Decimal) bool {
	if o.Subtotal.Equal(subtotal) && o.Total.Equal(total) {
		return false
	}
	o.Subtotal = subtotal
	o.Total = total
	o.UpdatedAt = time.Now().UTC()
	return true
}

// ServiceFee is the commission part of the total.
func (o *Order) ServiceFee() decimal.Decimal {
	return o.Total.Sub(o.Subtotal)
}
