// Package memory is a transactional in-process implementation of the
// repository ports. A transaction holds the store lock for its whole
// duration and works on a copy of the state that replaces the live state
// on commit, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"sync"

	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
)

type usageKey struct {
	stockUnitID int64
	orderLineID int64
}

type state struct {
	stock        map[int64]domain.StockUnit
	usage        map[usageKey]domain.UsageRecord
	requirements []domain.Requirement
	menu         map[int64]domain.MenuItem
	tables       map[int64]domain.Table
	orders       map[int64]domain.Order
	lines        map[int64]domain.OrderLine
	printers     map[int64]domain.Printer
	jobs         map[int64]domain.PrintJob
	statusLog    []domain.StatusLog
	nextID       int64
}

func newState() *state {
	return &state{
		stock:    make(map[int64]domain.StockUnit),
		usage:    make(map[usageKey]domain.UsageRecord),
		menu:     make(map[int64]domain.MenuItem),
		tables:   make(map[int64]domain.Table),
		orders:   make(map[int64]domain.Order),
		lines:    make(map[int64]domain.OrderLine),
		printers: make(map[int64]domain.Printer),
		jobs:     make(map[int64]domain.PrintJob),
	}
}

func (s *state) clone() *state {
	c := &state{
		stock:        cloneMap(s.stock),
		usage:        cloneMap(s.usage),
		requirements: append([]domain.Requirement(nil), s.requirements...),
		menu:         cloneMap(s.menu),
		tables:       cloneMap(s.tables),
		orders:       cloneMap(s.orders),
		lines:        cloneMap(s.lines),
		printers:     cloneMap(s.printers),
		jobs:         cloneMap(s.jobs),
		statusLog:    append([]domain.StatusLog(nil), s.statusLog...),
		nextID:       s.nextID,
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

type Store struct {
	mu sync.Mutex
	st *state
	*view
}

func NewStore() *Store {
	s := &Store{st: newState()}
	s.view = &view{store: s}
	return s
}

// view resolves which state a repository call works on: the live state
// under the store lock, or a transaction's private copy.
type view struct {
	store *Store
	tx    *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func (s *Store) WithinTx(ctx context.Context, fn func(repos interfaces.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := s.st.clone()
	if err := fn(&view{store: s, tx: tx}); err != nil {
		return err
	}
	s.st = tx
	return nil
}

func (v *view) Stock() interfaces.StockRepository { return stockRepo{v} }
func (v *view) Usage() interfaces.UsageRepository { return usageRepo{v} }
func (v *view) Recipes() interfaces.RecipeRepository { return recipeRepo{v} }
func (v *view) Menu() interfaces.MenuRepository { return menuRepo{v} }
func (v *view) Tables() interfaces.TableRepository { return tableRepo{v} }
func (v *view) Orders() interfaces.OrderRepository { return orderRepo{v} }
func (v *view) Lines() interfaces.OrderLineRepository { return lineRepo{v} }
func (v *view) Printers() interfaces.PrinterRepository { return printerRepo{v} }
func (v *view) PrintJobs() interfaces.PrintJobRepository { return printJobRepo{v} }

// Seeding helpers for data owned by the admin side. Each assigns an id when
// the given one is zero and returns the stored value.

func (s *Store) AddStockUnit(u domain.StockUnit) domain.StockUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.st.id()
	}
	s.st.stock[u.ID] = u
	return u
}

func (s *Store) AddRequirement(r domain.Requirement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.requirements = append(s.st.requirements, r)
}

func (s *Store) AddMenuItem(m domain.MenuItem) domain.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.st.id()
	}
	s.st.menu[m.ID] = m
	return m
}

func (s *Store) AddTable(t domain.Table) domain.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.st.id()
	}
	s.st.tables[t.ID] = t
	return t
}

func (s *Store) AddPrinter(p domain.Printer) domain.Printer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.st.id()
	}
	s.st.printers[p.ID] = p
	return p
}

// RemoveStockUnit drops a unit while leaving recipes pointing at it.
func (s *Store) RemoveStockUnit(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.stock, id)
}

// SetPrinterEnabled toggles a printer outside any transaction.
func (s *Store) SetPrinterEnabled(id int64, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.st.printers[id]; ok {
		p.IsEnabled = enabled
		s.st.printers[id] = p
	}
}

// UsageCount is the number of live usage records for a line.
func (s *Store) UsageCount(orderLineID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.st.usage {
		if k.orderLineID == orderLineID {
			n++
		}
	}
	return n
}
