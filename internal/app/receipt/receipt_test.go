package receipt

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testHeader = Header{
	WaiterName:    "Aziz",
	OrderID:       17,
	TableName:     "T4",
	TableLocation: "terrace",
	OpenedAt:      time.Date(2024, 3, 1, 18, 5, 0, 0, time.UTC),
	PrintedAt:     time.Date(2024, 3, 1, 19, 45, 30, 0, time.UTC),
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0", "0.00"},
		{"12.5", "12.50"},
		{"1234", "1 234.00"},
		{"1234567.891", "1 234 567.89"},
		{"-45000", "-45 000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Money(dec(tt.in)), tt.in)
	}
}

func TestCashierGroupsItemsAndPrintsTotals(t *testing.T) {
	out := Cashier(testHeader, []Item{
		{Name: "Cake", Quantity: dec("2"), Total: dec("20")},
		{Name: "Tea", Quantity: dec("1"), Total: dec("3")},
		{Name: "Cake", Quantity: dec("1"), Total: dec("10")},
	}, Totals{Subtotal: dec("33"), CommissionPercent: dec("10"), Total: dec("36.3")})

	assert.True(t, strings.HasSuffix(out, "\n\n\n\n\n"))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Equal(t, "waiter: Aziz", lines[0])
	assert.Equal(t, "table: T4, terrace | order #17", lines[1])
	assert.Equal(t, "opened: 01/03/24 18:05:00", lines[2])
	assert.Equal(t, "printed: 01/03/24 19:45:30", lines[3])
	assert.Equal(t, "Cake              3        30.00", lines[7])
	assert.Equal(t, "Tea               1         3.00", lines[8])
	assert.Contains(t, out, "subtotal: 33.00")
	assert.Contains(t, out, "service fee: 10% = 3.30")
	assert.Contains(t, out, "total due: 36.30")

	for _, l := range lines {
		assert.LessOrEqual(t, len([]rune(l)), Width, l)
	}
}

func TestHeaderWithoutTable(t *testing.T) {
	h := testHeader
	h.TableName, h.TableLocation = "", ""
	out := KitchenTicket(h, []Item{{Name: "Soup", Quantity: dec("1")}})
	assert.Contains(t, out, "table: - | order #17")
}

func TestKitchenAndCancellationTickets(t *testing.T) {
	items := []Item{{Name: "A very long dish name that overflows", Quantity: dec("2")}}

	kitchen := KitchenTicket(testHeader, items)
	require.Contains(t, kitchen, "order:\n   A very long dish name th    2")
	assert.NotContains(t, kitchen, "CANCELLED")

	cancelled := CancellationTicket(testHeader, items)
	assert.Contains(t, cancelled, "CANCELLED:\n"+strings.Repeat("-", Width)+"\norder:")
}
