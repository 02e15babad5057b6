package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
)

type TrackingHandler struct {
	service interfaces.TrackingService
	logger  logger.Logger
}

func NewTrackingHandler(service interfaces.TrackingService, logger logger.Logger) *TrackingHandler {
	return &TrackingHandler{
		service: service,
		logger:  logger,
	}
}

// Routes registers the read-only status endpoints.
func (h *TrackingHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/orders/", h.HandleOrders)
	mux.HandleFunc("/print-jobs", h.GetPrintQueue)
	mux.HandleFunc("/health", h.Health)
}

// HandleOrders serves /orders/{id}/status and /orders/{id}/history.
func (h *TrackingHandler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	orderID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || orderID <= 0 {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}

	switch parts[2] {
	case "status":
		h.getOrderStatus(w, r, orderID)
	case "history":
		h.getOrderHistory(w, r, orderID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *TrackingHandler) getOrderStatus(w http.ResponseWriter, r *http.Request, orderID int64) {
	result, err := h.service.GetOrderStatus(r.Context(), orderID)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"order_id":       result.OrderID,
		"current_status": result.CurrentStatus,
		"table_id":       result.TableID,
		"lines":          result.Lines,
		"subtotal":       result.Subtotal.String(),
		"total":          result.Total.String(),
		"updated_at":     result.UpdatedAt,
	}
	h.respondJSON(w, resp)
}

func (h *TrackingHandler) getOrderHistory(w http.ResponseWriter, r *http.Request, orderID int64) {
	history, err := h.service.GetOrderHistory(r.Context(), orderID)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}

	resp := make([]map[string]interface{}, len(history))
	for i, log := range history {
		resp[i] = map[string]interface{}{
			"status":     log.Status,
			"timestamp":  log.ChangedAt,
			"changed_by": log.ChangedBy,
		}
	}
	h.respondJSON(w, resp)
}

func (h *TrackingHandler) GetPrintQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs, err := h.service.GetPrintQueue(r.Context())
	if err != nil {
		_, requestID := logger.EnsureRequestID(r.Context())
		h.logger.Error("print_queue_failed", "Failed to read print queue", requestID, nil, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]map[string]interface{}, len(jobs))
	for i, job := range jobs {
		resp[i] = map[string]interface{}{
			"print_job_id":  job.JobID,
			"printer_id":    job.PrinterID,
			"printer_name":  job.PrinterName,
			"status":        job.Status,
			"last_error":    job.LastError,
			"waiting_since": job.WaitingSince,
		}
	}
	h.respondJSON(w, resp)
}

func (h *TrackingHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, map[string]string{"status": "ok"})
}

func (h *TrackingHandler) respondLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}
	_, requestID := logger.EnsureRequestID(r.Context())
	h.logger.Error("order_lookup_failed", "Failed to read order", requestID, nil, err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (h *TrackingHandler) respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response_encode_failed", "Failed to write response", "", nil, err)
	}
}
