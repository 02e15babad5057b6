package acceptance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/adapter/memory"
	"github.com/YelzhanWeb/waiter/internal/app/events"
	"github.com/YelzhanWeb/waiter/internal/app/printing"
	"github.com/YelzhanWeb/waiter/internal/app/reconciler"
	"github.com/YelzhanWeb/waiter/internal/config"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
)

// stubDriver stands in for the network printers.
type stubDriver struct {
	mu          sync.Mutex
	unreachable map[int64]bool
	received    []string
}

func (d *stubDriver) Print(_ context.Context, printer *domain.Printer, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unreachable[printer.ID] {
		return fmt.Errorf("printer %s unreachable: connection refused", printer.Name)
	}
	d.received = append(d.received, string(payload))
	return nil
}

type posTestContext struct {
	ctx    context.Context
	store  *memory.Store
	bus    *events.Bus
	policy config.MissingStockPolicy
	svc    *reconciler.Service

	units    map[string]domain.StockUnit
	items    map[string]domain.MenuItem
	tables   map[string]domain.Table
	printers map[string]domain.Printer
	jobs     map[string]int64

	driver *stubDriver
	order  *domain.Order
	line   *domain.OrderLine
	err    error
}

func (c *posTestContext) reset() {
	c.ctx = context.Background()
	c.store = memory.NewStore()
	c.bus = events.NewBus(nil, logger.NewNop())
	c.policy = config.MissingStockSkip
	c.svc = nil
	c.units = map[string]domain.StockUnit{}
	c.items = map[string]domain.MenuItem{}
	c.tables = map[string]domain.Table{}
	c.printers = map[string]domain.Printer{}
	c.jobs = map[string]int64{}
	c.driver = &stubDriver{unreachable: map[int64]bool{}}
	c.order = nil
	c.line = nil
	c.err = nil
}

// service is built on first use so Given steps can still pick the policy.
func (c *posTestContext) service() *reconciler.Service {
	if c.svc == nil {
		c.svc = reconciler.NewService(c.store, logger.NewNop(),
			reconciler.WithEventBus(c.bus),
			reconciler.WithMissingStockPolicy(c.policy),
		)
	}
	return c.svc
}

func (c *posTestContext) unit(name string) (domain.StockUnit, error) {
	u, ok := c.units[name]
	if !ok {
		return u, fmt.Errorf("unknown stock unit %q", name)
	}
	return u, nil
}

func (c *posTestContext) item(name string) (domain.MenuItem, error) {
	m, ok := c.items[name]
	if !ok {
		return m, fmt.Errorf("unknown menu item %q", name)
	}
	return m, nil
}

func (c *posTestContext) printer(name string) (domain.Printer, error) {
	p, ok := c.printers[name]
	if !ok {
		return p, fmt.Errorf("unknown printer %q", name)
	}
	return p, nil
}

func expectDecimal(what string, want string, got decimal.Decimal) error {
	w, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !got.Equal(w) {
		return fmt.Errorf("expected %s %s, got %s", what, w, got)
	}
	return nil
}

// Given steps

func (c *posTestContext) stockUnitWithOnHand(name, qty, uom string) error {
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return err
	}
	c.units[name] = c.store.AddStockUnit(domain.StockUnit{Name: name, Quantity: q, UnitOfMeasure: uom})
	return nil
}

func (c *posTestContext) stockUnitIsSetTo(name, qty, uom string) error {
	u, err := c.unit(name)
	if err != nil {
		return err
	}
	if u.Quantity, err = decimal.NewFromString(qty); err != nil {
		return err
	}
	u.UnitOfMeasure = uom
	c.units[name] = c.store.AddStockUnit(u)
	return nil
}

func (c *posTestContext) stockUnitIsRemoved(name string) error {
	u, err := c.unit(name)
	if err != nil {
		return err
	}
	c.store.RemoveStockUnit(u.ID)
	return nil
}

func (c *posTestContext) menuItemNeeds(name, price, qty, unitName string) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	c.items[name] = c.store.AddMenuItem(domain.MenuItem{Name: name, Price: p, Category: domain.CategoryMains, IsAvailable: true})
	return c.menuItemAlsoNeeds(name, qty, unitName)
}

func (c *posTestContext) menuItemAlsoNeeds(name, qty, unitName string) error {
	m, err := c.item(name)
	if err != nil {
		return err
	}
	u, err := c.unit(unitName)
	if err != nil {
		return err
	}
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return err
	}
	c.store.AddRequirement(domain.Requirement{MenuItemID: m.ID, StockUnitID: u.ID, QtyPerUnit: q})
	return nil
}

func (c *posTestContext) tableWithCommission(name, commission string) error {
	pct, err := decimal.NewFromString(commission)
	if err != nil {
		return err
	}
	c.tables[name] = c.store.AddTable(domain.Table{Name: name, Location: "hall", Capacity: 4, Commission: pct, IsAvailable: true})
	return nil
}

func (c *posTestContext) missingStockPolicyIs(policy string) error {
	c.policy = config.MissingStockPolicy(policy)
	c.svc = nil
	return nil
}

func (c *posTestContext) anOpenOrder() error {
	order, err := c.service().OpenOrder(c.ctx, interfaces.OpenOrderCommand{UserID: 1, WaiterName: "Aziz"})
	c.order = order
	return err
}

func (c *posTestContext) anOpenOrderAtTable(name string) error {
	t, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("unknown table %q", name)
	}
	order, err := c.service().OpenOrder(c.ctx, interfaces.OpenOrderCommand{UserID: 1, WaiterName: "Aziz", TableID: &t.ID})
	c.order = order
	return err
}

func (c *posTestContext) aPrinter(name string) error {
	c.printers[name] = c.store.AddPrinter(domain.Printer{Name: name, Address: "10.0.0.9", Port: 9100, IsEnabled: true})
	return nil
}

func (c *posTestContext) printerIs(name, state string) error {
	p, err := c.printer(name)
	if err != nil {
		return err
	}
	c.driver.mu.Lock()
	defer c.driver.mu.Unlock()
	c.driver.unreachable[p.ID] = state == "unreachable"
	return nil
}

func (c *posTestContext) aPrintJobFor(payload, printerName string) error {
	p, err := c.printer(printerName)
	if err != nil {
		return err
	}
	job, err := printing.NewQueue(c.store, c.bus, logger.NewNop()).EnqueuePrintJob(c.ctx, interfaces.EnqueuePrintJobCommand{
		PrinterID: p.ID,
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	c.jobs[payload] = job.ID
	return nil
}

// When steps

func (c *posTestContext) iAddToTheOrder(try, qty, itemName string) error {
	m, err := c.item(itemName)
	if err != nil {
		return err
	}
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return err
	}
	line, err := c.service().CreateOrderLine(c.ctx, interfaces.CreateOrderLineCommand{OrderID: c.order.ID, MenuItemID: m.ID, Quantity: q})
	return c.outcome(try, err, func() { c.line = line })
}

func (c *posTestContext) iChangeTheLineQuantityTo(qty string) error {
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return err
	}
	line, err := c.service().UpdateOrderLineQuantity(c.ctx, interfaces.UpdateOrderLineQuantityCommand{LineID: c.line.ID, Quantity: q})
	if err != nil {
		return err
	}
	c.line = line
	return nil
}

func (c *posTestContext) iDeleteTheLine() error {
	return c.service().DeleteOrderLine(c.ctx, interfaces.DeleteOrderLineCommand{LineID: c.line.ID})
}

func (c *posTestContext) iSetTheOrderStatusTo(try, status string) error {
	order, err := c.service().SetOrderStatus(c.ctx, interfaces.SetOrderStatusCommand{
		OrderID:   c.order.ID,
		Status:    domain.OrderStatus(status),
		ChangedBy: "manager",
	})
	return c.outcome(try, err, func() { c.order = order })
}

// outcome records the error of a "try to" step and fails any other step.
func (c *posTestContext) outcome(try string, err error, onSuccess func()) error {
	c.err = err
	if err == nil {
		onSuccess()
		return nil
	}
	if try != "" {
		return nil
	}
	return err
}

func (c *posTestContext) theDispatcherRuns() error {
	d := printing.NewDispatcher(c.store, c.driver, c.bus, logger.NewNop(), 0)
	_, err := d.RunOnce(c.ctx)
	return err
}

func (c *posTestContext) iCancelPendingPrintJobs() error {
	_, err := printing.NewQueue(c.store, c.bus, logger.NewNop()).CancelPendingPrintJobs(c.ctx)
	return err
}

// Then steps

func (c *posTestContext) stockHasOnHand(name, qty string) error {
	u, err := c.unit(name)
	if err != nil {
		return err
	}
	got, err := c.store.Stock().FindByID(c.ctx, u.ID)
	if err != nil {
		return err
	}
	return expectDecimal(name+" on hand", qty, got.Quantity)
}

func (c *posTestContext) theLineUses(qty, unitName string) error {
	u, err := c.unit(unitName)
	if err != nil {
		return err
	}
	rec, err := c.store.Usage().Find(c.ctx, u.ID, c.line.ID)
	if err != nil {
		return err
	}
	return expectDecimal("usage of "+unitName, qty, rec.Quantity)
}

func (c *posTestContext) theLineHasNoUsageRecords() error {
	if n := c.store.UsageCount(c.line.ID); n != 0 {
		return fmt.Errorf("expected no usage records, got %d", n)
	}
	return nil
}

func (c *posTestContext) theOperationIsRejectedFor(unitName, available, required string) error {
	var stockErr *domain.InsufficientStockError
	if !errors.As(c.err, &stockErr) {
		return fmt.Errorf("expected insufficient stock, got %v", c.err)
	}
	if stockErr.UnitName != unitName {
		return fmt.Errorf("expected shortage of %s, got %s", unitName, stockErr.UnitName)
	}
	if err := expectDecimal("available", available, stockErr.Available); err != nil {
		return err
	}
	return expectDecimal("required", required, stockErr.Required)
}

func (c *posTestContext) theOperationResult(result string) error {
	if result == "succeeds" && c.err != nil {
		return fmt.Errorf("expected success, got %v", c.err)
	}
	if result == "fails" && c.err == nil {
		return errors.New("expected the operation to fail")
	}
	return nil
}

func (c *posTestContext) theOperationFailsWithInvalidTransition() error {
	if !errors.Is(c.err, domain.ErrInvalidStatusTransition) {
		return fmt.Errorf("expected invalid status transition, got %v", c.err)
	}
	return nil
}

func (c *posTestContext) menuItemIs(name, state string) error {
	m, err := c.item(name)
	if err != nil {
		return err
	}
	got, err := c.store.Menu().FindByID(c.ctx, m.ID)
	if err != nil {
		return err
	}
	if got.IsAvailable != (state == "available") {
		return fmt.Errorf("expected menu item %s to be %s", name, state)
	}
	return nil
}

func (c *posTestContext) tableIs(name, state string) error {
	t, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("unknown table %q", name)
	}
	got, err := c.store.Tables().FindByID(c.ctx, t.ID)
	if err != nil {
		return err
	}
	if got.IsAvailable != (state == "available") {
		return fmt.Errorf("expected table %s to be %s", name, state)
	}
	return nil
}

func (c *posTestContext) theOrderTotalIs(total string) error {
	got, err := c.store.Orders().FindByID(c.ctx, c.order.ID)
	if err != nil {
		return err
	}
	return expectDecimal("order total", total, got.Total)
}

func (c *posTestContext) printJobIs(name, status, withError string) error {
	id, ok := c.jobs[name]
	if !ok {
		return fmt.Errorf("unknown print job %q", name)
	}
	job, err := c.store.PrintJobs().FindByID(c.ctx, id)
	if err != nil {
		return err
	}
	if string(job.Status) != status {
		return fmt.Errorf("expected print job %s to be %s, got %s", name, status, job.Status)
	}
	if withError != "" && (job.ErrorMessage == nil || *job.ErrorMessage == "") {
		return fmt.Errorf("expected print job %s to carry an error", name)
	}
	return nil
}

func (c *posTestContext) thePrintersReceived(list string) error {
	c.driver.mu.Lock()
	defer c.driver.mu.Unlock()
	got := strings.Join(c.driver.received, ",")
	if got != list {
		return fmt.Errorf("expected printers to receive %q, got %q", list, got)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &posTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^stock unit "([^"]*)" with ([\d.]+) (\w+) on hand$`, tc.stockUnitWithOnHand)
	ctx.Step(`^stock unit "([^"]*)" is set to ([\d.]+) (\w+)$`, tc.stockUnitIsSetTo)
	ctx.Step(`^stock unit "([^"]*)" is removed$`, tc.stockUnitIsRemoved)
	ctx.Step(`^menu item "([^"]*)" priced ([\d.]+) that needs ([\d.]+) of "([^"]*)"$`, tc.menuItemNeeds)
	ctx.Step(`^menu item "([^"]*)" also needs ([\d.]+) of "([^"]*)"$`, tc.menuItemAlsoNeeds)
	ctx.Step(`^table "([^"]*)" with ([\d.]+) percent commission$`, tc.tableWithCommission)
	ctx.Step(`^the missing stock policy is "([^"]*)"$`, tc.missingStockPolicyIs)
	ctx.Step(`^an open order$`, tc.anOpenOrder)
	ctx.Step(`^an open order at table "([^"]*)"$`, tc.anOpenOrderAtTable)
	ctx.Step(`^a printer "([^"]*)"$`, tc.aPrinter)
	ctx.Step(`^printer "([^"]*)" is (reachable|unreachable)$`, tc.printerIs)
	ctx.Step(`^a print job "([^"]*)" for printer "([^"]*)"$`, tc.aPrintJobFor)

	// When steps
	ctx.Step(`^I (try to )?add ([\d.]+) of "([^"]*)" to the order$`, tc.iAddToTheOrder)
	ctx.Step(`^I change the line quantity to ([\d.]+)$`, tc.iChangeTheLineQuantityTo)
	ctx.Step(`^I delete the line$`, tc.iDeleteTheLine)
	ctx.Step(`^I (try to )?set the order status to "([^"]*)"$`, tc.iSetTheOrderStatusTo)
	ctx.Step(`^the dispatcher runs$`, tc.theDispatcherRuns)
	ctx.Step(`^I cancel pending print jobs$`, tc.iCancelPendingPrintJobs)

	// Then steps
	ctx.Step(`^"([^"]*)" has ([\d.]+) on hand$`, tc.stockHasOnHand)
	ctx.Step(`^the line uses ([\d.]+) of "([^"]*)"$`, tc.theLineUses)
	ctx.Step(`^the line has no usage records$`, tc.theLineHasNoUsageRecords)
	ctx.Step(`^the operation is rejected for "([^"]*)" with ([\d.]+) available and ([\d.]+) required$`, tc.theOperationIsRejectedFor)
	ctx.Step(`^the operation (succeeds|fails)$`, tc.theOperationResult)
	ctx.Step(`^the operation fails with an invalid status transition$`, tc.theOperationFailsWithInvalidTransition)
	ctx.Step(`^menu item "([^"]*)" is (available|unavailable)$`, tc.menuItemIs)
	ctx.Step(`^table "([^"]*)" is (available|unavailable)$`, tc.tableIs)
	ctx.Step(`^the order total is ([\d.]+)$`, tc.theOrderTotalIs)
	ctx.Step(`^print job "([^"]*)" is "([^"]*)"( with an error)?$`, tc.printJobIs)
	ctx.Step(`^the printers received "([^"]*)"$`, tc.thePrintersReceived)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
