// Package receipt renders plain-text slips for 32-column thermal printers.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Width      = 32
	timeLayout = "02/01/06 15:04:05"
	trailer    = "\n\n\n\n\n"
)

var rule = strings.Repeat("-", Width)

// Header is the block printed at the top of every slip.
type Header struct {
	WaiterName    string
	OrderID       int64
	TableName     string
	TableLocation string
	OpenedAt      time.Time
	PrintedAt     time.Time
}

// Item is one row of a slip. Total is ignored on kitchen tickets.
type Item struct {
	Name     string
	Quantity decimal.Decimal
	Total    decimal.Decimal
}

// Totals are the amounts at the bottom of a cashier receipt.
type Totals struct {
	Subtotal          decimal.Decimal
	CommissionPercent decimal.Decimal
	Total             decimal.Decimal
}

// Cashier renders the final bill. Rows with the same name are merged.
func Cashier(h Header, items []Item, totals Totals) string {
	lines := header(h)
	lines = append(lines,
		fmt.Sprintf("%-16s%s%10s", "item", center("qty", 6), "price"),
		rule,
	)
	for _, it := range group(items) {
		lines = append(lines, fmt.Sprintf("%-16s%s%10s",
			truncate(it.Name, 15), center(it.Quantity.String(), 6), Money(it.Total)))
	}
	lines = append(lines,
		rule,
		"subtotal: "+Money(totals.Subtotal),
		fmt.Sprintf("service fee: %s%% = %s", totals.CommissionPercent.String(), Money(totals.Total.Sub(totals.Subtotal))),
		rule,
		"total due: "+Money(totals.Total),
		rule,
	)
	return finish(lines)
}

// KitchenTicket tells the kitchen what to prepare.
func KitchenTicket(h Header, items []Item) string {
	lines := append(header(h), "order:")
	return finish(append(lines, itemRows(items)...))
}

// CancellationTicket tells the kitchen to stop preparing items.
func CancellationTicket(h Header, items []Item) string {
	lines := append(header(h), "CANCELLED:", rule, "order:")
	return finish(append(lines, itemRows(items)...))
}

func header(h Header) []string {
	table := "-"
	if h.TableName != "" {
		table = h.TableName
		if h.TableLocation != "" {
			table += ", " + h.TableLocation
		}
	}
	return []string{
		"waiter: " + h.WaiterName,
		fmt.Sprintf("table: %s | order #%d", table, h.OrderID),
		"opened: " + h.OpenedAt.Format(timeLayout),
		"printed: " + h.PrintedAt.Format(timeLayout),
		rule,
	}
}

func itemRows(items []Item) []string {
	rows := make([]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, fmt.Sprintf("   %-24s%5s", truncate(it.Name, 24), it.Quantity.String()))
	}
	return rows
}

func group(items []Item) []Item {
	var out []Item
	index := make(map[string]int)
	for _, it := range items {
		if i, ok := index[it.Name]; ok {
			out[i].Quantity = out[i].Quantity.Add(it.Quantity)
			out[i].Total = out[i].Total.Add(it.Total)
			continue
		}
		index[it.Name] = len(out)
		out = append(out, it)
	}
	return out
}

func finish(lines []string) string {
	return strings.Join(lines, "\n") + trailer
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func center(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-n-left)
}

// Money formats an amount with two decimals and space-separated thousands.
func Money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + "." + frac
}
