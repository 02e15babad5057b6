package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
)

type Service struct {
	repos  interfaces.Repositories
	logger logger.Logger
}

func NewService(repos interfaces.Repositories, logger logger.Logger) *Service {
	return &Service{
		repos:  repos,
		logger: logger,
	}
}

func (s *Service) GetOrderStatus(ctx context.Context, orderID int64) (*interfaces.TrackingOrderResponse, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repos.Lines().ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lines of order %d: %w", order.ID, err)
	}

	return &interfaces.TrackingOrderResponse{
		OrderID:       order.ID,
		CurrentStatus: order.Status,
		TableID:       order.TableID,
		Lines:         len(lines),
		Subtotal:      order.Subtotal,
		Total:         order.Total,
		UpdatedAt:     order.UpdatedAt,
	}, nil
}

func (s *Service) GetOrderHistory(ctx context.Context, orderID int64) ([]*domain.StatusLog, error) {
	order, err := s.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.repos.Orders().GetStatusHistory(ctx, order.ID)
}

// GetPrintQueue lists the jobs still waiting for delivery, oldest first,
// with the last delivery error of each.
func (s *Service) GetPrintQueue(ctx context.Context) ([]*interfaces.TrackingPrintJobResponse, error) {
	jobs, err := s.repos.PrintJobs().FindPending(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string)
	resp := make([]*interfaces.TrackingPrintJobResponse, 0, len(jobs))
	for _, j := range jobs {
		name, ok := names[j.PrinterID]
		if !ok {
			p, err := s.repos.Printers().FindByID(ctx, j.PrinterID)
			switch {
			case err == nil:
				name = p.Name
			case errors.Is(err, domain.ErrNotFound):
				// Принтер удален, задание все равно показываем
				s.logger.Warn("printer_missing", "Pending job references a missing printer", "", map[string]interface{}{
					"print_job_id": j.ID,
					"printer_id":   j.PrinterID,
				})
			default:
				return nil, err
			}
			names[j.PrinterID] = name
		}

		item := &interfaces.TrackingPrintJobResponse{
			JobID:        j.ID,
			PrinterID:    j.PrinterID,
			PrinterName:  name,
			Status:       j.Status,
			WaitingSince: j.CreatedAt,
		}
		if j.ErrorMessage != nil {
			item.LastError = *j.ErrorMessage
		}
		resp = append(resp, item)
	}

	return resp, nil
}
