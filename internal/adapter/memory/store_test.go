package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ interfaces.Store = (*Store)(nil)

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	flour := s.AddStockUnit(domain.StockUnit{Name: "Flour", Quantity: decimal.NewFromInt(10)})

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(repos interfaces.Repositories) error {
		ok, err := repos.Stock().SubtractIfAvailable(ctx, flour.ID, decimal.NewFromInt(4))
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Stock().FindByID(ctx, flour.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(10)))
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	flour := s.AddStockUnit(domain.StockUnit{Name: "Flour", Quantity: decimal.NewFromInt(10)})

	err := s.WithinTx(ctx, func(repos interfaces.Repositories) error {
		_, err := repos.Stock().SubtractIfAvailable(ctx, flour.ID, decimal.NewFromInt(4))
		return err
	})
	require.NoError(t, err)

	got, err := s.Stock().FindByID(ctx, flour.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(6)))
}

func TestSubtractIfAvailable(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	sugar := s.AddStockUnit(domain.StockUnit{Name: "Sugar", Quantity: decimal.RequireFromString("1.0")})

	ok, err := s.Stock().SubtractIfAvailable(ctx, sugar.ID, decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Stock().SubtractIfAvailable(ctx, sugar.ID, decimal.RequireFromString("1.0"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Stock().SubtractIfAvailable(ctx, 999, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := s.Stock().Add(ctx, 999, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindByIDNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.Orders().FindByID(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPrintJobLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	jobs := s.PrintJobs()

	first := &domain.PrintJob{PrinterID: 1, Status: domain.PrintJobPending, Payload: "a", CreatedAt: time.Now()}
	second := &domain.PrintJob{PrinterID: 1, Status: domain.PrintJobPending, Payload: "b", CreatedAt: first.CreatedAt.Add(time.Second)}
	require.NoError(t, jobs.Create(ctx, second))
	require.NoError(t, jobs.Create(ctx, first))

	pending, err := jobs.FindPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].Payload)

	claimed, err := jobs.Claim(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = jobs.Claim(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, jobs.MarkFailed(ctx, first.ID, "connection refused"))
	got, err := jobs.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PrintJobPending, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "connection refused", *got.ErrorMessage)

	n, err := jobs.CancelPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	claimed, err = jobs.Claim(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRequeuePrinting(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	job := &domain.PrintJob{PrinterID: 1, Status: domain.PrintJobPending, Payload: "a"}
	require.NoError(t, s.PrintJobs().Create(ctx, job))

	_, err := s.PrintJobs().Claim(ctx, job.ID)
	require.NoError(t, err)

	n, err := s.PrintJobs().RequeuePrinting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.PrintJobs().FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PrintJobPending, got.Status)
}

func TestCountActiveByTable(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	table := s.AddTable(domain.Table{Name: "T1", IsAvailable: true})

	for _, status := range []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusCompleted} {
		o := &domain.Order{UserID: 1, TableID: &table.ID, Status: status}
		require.NoError(t, s.Orders().Create(ctx, o))
	}

	n, err := s.Orders().CountActiveByTable(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
