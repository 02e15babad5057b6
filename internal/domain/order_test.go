package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitions(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusPending, true},
		{OrderStatusProcessing, OrderStatusCompleted, true},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			o := &Order{Status: tt.from}
			err := o.TransitionTo(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, o.Status)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidStatusTransition)
			assert.Equal(t, tt.from, o.Status)
		})
	}
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, OrderStatusPending.IsActive())
	assert.True(t, OrderStatusProcessing.IsActive())
	assert.False(t, OrderStatusCompleted.IsActive())
	assert.False(t, OrderStatus("served").Valid())

	assert.True(t, PrintJobPrinted.IsTerminal())
	assert.True(t, PrintJobCancelled.IsTerminal())
	assert.False(t, PrintJobPending.IsTerminal())
}

func TestNewOrderAndLine(t *testing.T) {
	_, err := NewOrder(0, nil)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "user_id", verr.Field)

	o, err := NewOrder(7, nil)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPending, o.Status)
	assert.True(t, o.Total.IsZero())

	_, err = NewOrderLine(1, 1, decimal.Zero)
	assert.True(t, errors.As(err, &verr))

	line, err := NewOrderLine(1, 2, decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, "0.5", line.Quantity.String())
}

func TestTotals(t *testing.T) {
	subtotal := LineTotal(decimal.RequireFromString("2.5"), decimal.RequireFromString("1200"))
	assert.Equal(t, "3000", subtotal.String())

	total := ApplyCommission(subtotal, decimal.RequireFromString("15"))
	assert.Equal(t, "3450", total.String())
	assert.True(t, ApplyCommission(subtotal, decimal.Zero).Equal(subtotal))

	o := &Order{}
	assert.True(t, o.SetTotals(subtotal, total))
	assert.False(t, o.SetTotals(subtotal, total))
	assert.Equal(t, "450", o.ServiceFee().String())
}

func TestRequirement(t *testing.T) {
	r := Requirement{QtyPerUnit: decimal.RequireFromString("0.5")}
	assert.Equal(t, "1.5", r.Needed(decimal.NewFromInt(3)).String())

	// Smallest line quantity times the finest requirement is stored unrounded.
	fine := Requirement{QtyPerUnit: decimal.RequireFromString("0.125")}
	needed := fine.Needed(decimal.RequireFromString("0.25"))
	assert.Equal(t, "0.03125", needed.String())
	assert.True(t, needed.Equal(needed.Round(StockScale)))
}

func TestLineQuantityScale(t *testing.T) {
	assert.NoError(t, ValidateLineQuantity(decimal.RequireFromString("0.25")))
	assert.NoError(t, ValidateLineQuantity(decimal.RequireFromString("2.500")))

	var verr *ValidationError
	require.ErrorAs(t, ValidateLineQuantity(decimal.RequireFromString("0.333")), &verr)
	assert.Equal(t, "quantity", verr.Field)
}

func TestErrorClassification(t *testing.T) {
	stockErr := &InsufficientStockError{
		UnitName:  "Flour",
		Available: decimal.NewFromInt(1),
		Required:  decimal.RequireFromString("1.5"),
	}
	assert.Equal(t, "insufficient stock for Flour: available 1, required 1.5", stockErr.Error())
	assert.Equal(t, "0.5", stockErr.Shortfall().String())

	assert.True(t, IsBusinessError(stockErr))
	assert.True(t, IsBusinessError(NewValidationError("quantity", "bad")))
	assert.True(t, IsBusinessError(errors.Join(errors.New("ctx"), ErrOrderNotActive)))
	assert.False(t, IsBusinessError(errors.New("connection reset")))
	assert.False(t, IsBusinessError(nil))

	assert.Equal(t, "bad", NewValidationError("", "bad").Error())
}

func TestNewPrintJob(t *testing.T) {
	job, err := NewPrintJob(1, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, PayloadText, job.Encoding)
	assert.Equal(t, PrintJobPending, job.Status)
	b, err := job.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	job, err = NewPrintJob(1, "G0A=", PayloadBase64)
	require.NoError(t, err)
	b, err = job.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1b, 0x40}, b)

	for _, tc := range []struct {
		printerID int64
		payload   string
		encoding  PayloadEncoding
	}{
		{0, "x", PayloadText},
		{1, "", PayloadText},
		{1, "not base64!", PayloadBase64},
		{1, "x", "hex"},
	} {
		_, err := NewPrintJob(tc.printerID, tc.payload, tc.encoding)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "%+v", tc)
	}
}
