package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/shopspring/decimal"
)

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
}

type stockRepo struct{ v *view }

func (r stockRepo) FindByID(_ context.Context, id int64) (*domain.StockUnit, error) {
	var out *domain.StockUnit
	err := r.v.do(func(st *state) error {
		u, ok := st.stock[id]
		if !ok {
			return notFound("stock unit", id)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r stockRepo) SubtractIfAvailable(_ context.Context, id int64, amount decimal.Decimal) (bool, error) {
	var matched bool
	err := r.v.do(func(st *state) error {
		u, ok := st.stock[id]
		if !ok || u.Quantity.LessThan(amount) {
			return nil
		}
		u.Quantity = u.Quantity.Sub(amount)
		st.stock[id] = u
		matched = true
		return nil
	})
	return matched, err
}

func (r stockRepo) Add(_ context.Context, id int64, amount decimal.Decimal) (bool, error) {
	var found bool
	err := r.v.do(func(st *state) error {
		u, ok := st.stock[id]
		if !ok {
			return nil
		}
		u.Quantity = u.Quantity.Add(amount)
		st.stock[id] = u
		found = true
		return nil
	})
	return found, err
}

type usageRepo struct{ v *view }

func (r usageRepo) Find(_ context.Context, stockUnitID, orderLineID int64) (*domain.UsageRecord, error) {
	var out *domain.UsageRecord
	err := r.v.do(func(st *state) error {
		rec, ok := st.usage[usageKey{stockUnitID, orderLineID}]
		if !ok {
			return fmt.Errorf("usage record (%d, %d): %w", stockUnitID, orderLineID, domain.ErrNotFound)
		}
		out = &rec
		return nil
	})
	return out, err
}

func (r usageRepo) Save(_ context.Context, rec *domain.UsageRecord) error {
	return r.v.do(func(st *state) error {
		key := usageKey{rec.StockUnitID, rec.OrderLineID}
		if existing, ok := st.usage[key]; ok {
			rec.CreatedAt = existing.CreatedAt
		} else if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		st.usage[key] = *rec
		return nil
	})
}

func (r usageRepo) Delete(_ context.Context, stockUnitID, orderLineID int64) error {
	return r.v.do(func(st *state) error {
		delete(st.usage, usageKey{stockUnitID, orderLineID})
		return nil
	})
}

func (r usageRepo) ListByLine(_ context.Context, orderLineID int64) ([]domain.UsageRecord, error) {
	var out []domain.UsageRecord
	err := r.v.do(func(st *state) error {
		for k, rec := range st.usage {
			if k.orderLineID == orderLineID {
				out = append(out, rec)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StockUnitID < out[j].StockUnitID })
	return out, err
}

type recipeRepo struct{ v *view }

func (r recipeRepo) RequirementsFor(_ context.Context, menuItemID int64) ([]domain.Requirement, error) {
	var out []domain.Requirement
	err := r.v.do(func(st *state) error {
		for _, req := range st.requirements {
			if req.MenuItemID == menuItemID {
				out = append(out, req)
			}
		}
		return nil
	})
	return out, err
}

func (r recipeRepo) MenuItemsUsing(_ context.Context, stockUnitID int64) ([]int64, error) {
	var out []int64
	err := r.v.do(func(st *state) error {
		seen := make(map[int64]bool)
		for _, req := range st.requirements {
			if req.StockUnitID == stockUnitID && !seen[req.MenuItemID] {
				seen[req.MenuItemID] = true
				out = append(out, req.MenuItemID)
			}
		}
		return nil
	})
	return out, err
}

type menuRepo struct{ v *view }

func (r menuRepo) FindByID(_ context.Context, id int64) (*domain.MenuItem, error) {
	var out *domain.MenuItem
	err := r.v.do(func(st *state) error {
		m, ok := st.menu[id]
		if !ok {
			return notFound("menu item", id)
		}
		out = &m
		return nil
	})
	return out, err
}

func (r menuRepo) SetAvailable(_ context.Context, id int64, available bool) error {
	return r.v.do(func(st *state) error {
		m, ok := st.menu[id]
		if !ok {
			return notFound("menu item", id)
		}
		m.IsAvailable = available
		st.menu[id] = m
		return nil
	})
}

type tableRepo struct{ v *view }

func (r tableRepo) FindByID(_ context.Context, id int64) (*domain.Table, error) {
	var out *domain.Table
	err := r.v.do(func(st *state) error {
		t, ok := st.tables[id]
		if !ok {
			return notFound("table", id)
		}
		out = &t
		return nil
	})
	return out, err
}

func (r tableRepo) SetAvailable(_ context.Context, id int64, available bool) error {
	return r.v.do(func(st *state) error {
		t, ok := st.tables[id]
		if !ok {
			return notFound("table", id)
		}
		t.IsAvailable = available
		st.tables[id] = t
		return nil
	})
}

type orderRepo struct{ v *view }

func (r orderRepo) Create(_ context.Context, order *domain.Order) error {
	return r.v.do(func(st *state) error {
		order.ID = st.id()
		st.orders[order.ID] = *order
		return nil
	})
}

func (r orderRepo) FindByID(_ context.Context, id int64) (*domain.Order, error) {
	var out *domain.Order
	err := r.v.do(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return notFound("order", id)
		}
		out = &o
		return nil
	})
	return out, err
}

func (r orderRepo) UpdateTotals(_ context.Context, order *domain.Order) error {
	return r.v.do(func(st *state) error {
		o, ok := st.orders[order.ID]
		if !ok {
			return notFound("order", order.ID)
		}
		o.Subtotal, o.Total, o.UpdatedAt = order.Subtotal, order.Total, order.UpdatedAt
		st.orders[o.ID] = o
		return nil
	})
}

func (r orderRepo) UpdateStatus(_ context.Context, order *domain.Order) error {
	return r.v.do(func(st *state) error {
		o, ok := st.orders[order.ID]
		if !ok {
			return notFound("order", order.ID)
		}
		o.Status, o.UpdatedAt = order.Status, order.UpdatedAt
		st.orders[o.ID] = o
		return nil
	})
}

func (r orderRepo) Delete(_ context.Context, id int64) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.orders[id]; !ok {
			return notFound("order", id)
		}
		delete(st.orders, id)
		return nil
	})
}

func (r orderRepo) CountActiveByTable(_ context.Context, tableID int64) (int, error) {
	n := 0
	err := r.v.do(func(st *state) error {
		for _, o := range st.orders {
			if o.TableID != nil && *o.TableID == tableID && o.Status.IsActive() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r orderRepo) LogStatus(_ context.Context, orderID int64, status domain.OrderStatus, changedBy string) error {
	return r.v.do(func(st *state) error {
		st.statusLog = append(st.statusLog, domain.StatusLog{
			ID:        st.id(),
			OrderID:   orderID,
			Status:    status,
			ChangedBy: changedBy,
			ChangedAt: time.Now().UTC(),
		})
		return nil
	})
}

func (r orderRepo) GetStatusHistory(_ context.Context, orderID int64) ([]*domain.StatusLog, error) {
	var out []*domain.StatusLog
	err := r.v.do(func(st *state) error {
		for i := range st.statusLog {
			if st.statusLog[i].OrderID == orderID {
				entry := st.statusLog[i]
				out = append(out, &entry)
			}
		}
		return nil
	})
	return out, err
}

type lineRepo struct{ v *view }

func (r lineRepo) Create(_ context.Context, line *domain.OrderLine) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.orders[line.OrderID]; !ok {
			return notFound("order", line.OrderID)
		}
		line.ID = st.id()
		st.lines[line.ID] = *line
		return nil
	})
}

func (r lineRepo) FindByID(_ context.Context, id int64) (*domain.OrderLine, error) {
	var out *domain.OrderLine
	err := r.v.do(func(st *state) error {
		l, ok := st.lines[id]
		if !ok {
			return notFound("order line", id)
		}
		out = &l
		return nil
	})
	return out, err
}

func (r lineRepo) UpdateQuantity(_ context.Context, line *domain.OrderLine) error {
	return r.v.do(func(st *state) error {
		l, ok := st.lines[line.ID]
		if !ok {
			return notFound("order line", line.ID)
		}
		l.Quantity, l.UpdatedAt = line.Quantity, line.UpdatedAt
		st.lines[l.ID] = l
		return nil
	})
}

func (r lineRepo) Delete(_ context.Context, id int64) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.lines[id]; !ok {
			return notFound("order line", id)
		}
		delete(st.lines, id)
		return nil
	})
}

func (r lineRepo) ListByOrder(_ context.Context, orderID int64) ([]domain.OrderLine, error) {
	var out []domain.OrderLine
	err := r.v.do(func(st *state) error {
		for _, l := range st.lines {
			if l.OrderID == orderID {
				out = append(out, l)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

type printerRepo struct{ v *view }

func (r printerRepo) FindByID(_ context.Context, id int64) (*domain.Printer, error) {
	var out *domain.Printer
	err := r.v.do(func(st *state) error {
		p, ok := st.printers[id]
		if !ok {
			return notFound("printer", id)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r printerRepo) FindCheckout(_ context.Context) (*domain.Printer, error) {
	var out *domain.Printer
	err := r.v.do(func(st *state) error {
		for _, p := range st.printers {
			if p.IsCheckout && p.IsEnabled && (out == nil || p.ID < out.ID) {
				p := p
				out = &p
			}
		}
		if out == nil {
			return fmt.Errorf("checkout printer: %w", domain.ErrNotFound)
		}
		return nil
	})
	return out, err
}

type printJobRepo struct{ v *view }

func (r printJobRepo) Create(_ context.Context, job *domain.PrintJob) error {
	return r.v.do(func(st *state) error {
		job.ID = st.id()
		st.jobs[job.ID] = *job
		return nil
	})
}

func (r printJobRepo) FindByID(_ context.Context, id int64) (*domain.PrintJob, error) {
	var out *domain.PrintJob
	err := r.v.do(func(st *state) error {
		j, ok := st.jobs[id]
		if !ok {
			return notFound("print job", id)
		}
		out = &j
		return nil
	})
	return out, err
}

func (r printJobRepo) FindPending(_ context.Context) ([]*domain.PrintJob, error) {
	var out []*domain.PrintJob
	err := r.v.do(func(st *state) error {
		for _, j := range st.jobs {
			if j.Status == domain.PrintJobPending {
				j := j
				out = append(out, &j)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r printJobRepo) transition(id int64, from []domain.PrintJobStatus, to domain.PrintJobStatus, errMsg *string) (bool, error) {
	var changed bool
	err := r.v.do(func(st *state) error {
		j, ok := st.jobs[id]
		if !ok {
			return notFound("print job", id)
		}
		for _, s := range from {
			if j.Status == s {
				j.Status = to
				if to != domain.PrintJobPrinting {
					j.ErrorMessage = errMsg
				}
				j.UpdatedAt = time.Now().UTC()
				st.jobs[id] = j
				changed = true
				return nil
			}
		}
		return nil
	})
	return changed, err
}

func (r printJobRepo) Claim(_ context.Context, id int64) (bool, error) {
	return r.transition(id, []domain.PrintJobStatus{domain.PrintJobPending}, domain.PrintJobPrinting, nil)
}

func (r printJobRepo) MarkPrinted(_ context.Context, id int64) error {
	_, err := r.transition(id, []domain.PrintJobStatus{domain.PrintJobPrinting}, domain.PrintJobPrinted, nil)
	return err
}

func (r printJobRepo) MarkFailed(_ context.Context, id int64, reason string) error {
	_, err := r.transition(id, []domain.PrintJobStatus{domain.PrintJobPrinting}, domain.PrintJobPending, &reason)
	return err
}

func (r printJobRepo) CancelPending(_ context.Context) (int, error) {
	n := 0
	err := r.v.do(func(st *state) error {
		now := time.Now().UTC()
		for id, j := range st.jobs {
			if j.Status == domain.PrintJobPending {
				j.Status = domain.PrintJobCancelled
				j.UpdatedAt = now
				st.jobs[id] = j
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r printJobRepo) RequeuePrinting(_ context.Context) (int, error) {
	n := 0
	err := r.v.do(func(st *state) error {
		now := time.Now().UTC()
		for id, j := range st.jobs {
			if j.Status == domain.PrintJobPrinting {
				j.Status = domain.PrintJobPending
				j.UpdatedAt = now
				st.jobs[id] = j
				n++
			}
		}
		return nil
	})
	return n, err
}
