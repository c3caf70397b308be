// Package handler содержит HTTP-обработчики API сервиса учёта пекарни.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/bakery-ledger/internal/model"
	"github.com/mmeshcher/bakery-ledger/internal/repository"
	"github.com/mmeshcher/bakery-ledger/internal/service"
	"github.com/mmeshcher/bakery-ledger/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateCustomer(ctx context.Context, name string, phone *string) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, name string, phone *string) (*model.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	GetCustomerDetail(ctx context.Context, id int64) (*model.CustomerDetail, error)
	CreateOrders(ctx context.Context, inputs []service.OrderInput) ([]int64, error)
	CreatePayment(ctx context.Context, customerID int64, amount float64, note *string) (*model.Payment, error)
	Dashboard(ctx context.Context) (*model.DashboardStats, error)
	Report(ctx context.Context, day time.Time) ([]model.ReportRow, error)
}

// Handler реализует HTTP-обработчики API сервиса учёта пекарни.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type customerRequest struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone,omitempty"`
}

type customerResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Phone          *string `json:"phone,omitempty"`
	CurrentBalance float64 `json:"current_balance"`
	CreatedAt      string  `json:"created_at"`
}

type orderResponse struct {
	ID           int64   `json:"id"`
	CustomerID   int64   `json:"customer_id"`
	Quantity     int64   `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	TotalPrice   float64 `json:"total_price"`
	Status       string  `json:"status"`
	OrderDate    string  `json:"order_date"`
	OrderGroupID *string `json:"order_group_id,omitempty"`
}

type paymentResponse struct {
	ID          int64   `json:"id"`
	CustomerID  int64   `json:"customer_id"`
	Amount      float64 `json:"amount"`
	PaymentDate string  `json:"payment_date"`
	Note        *string `json:"note,omitempty"`
}

func toCustomerResponse(c model.Customer) customerResponse {
	return customerResponse{
		ID:             c.ID,
		Name:           c.Name,
		Phone:          c.Phone,
		CurrentBalance: float64(c.BalanceCents) / 100,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
}

func toOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		CustomerID:   o.CustomerID,
		Quantity:     o.Quantity,
		UnitPrice:    float64(o.UnitPriceCents) / 100,
		TotalPrice:   float64(o.TotalPriceCents) / 100,
		Status:       string(o.Status),
		OrderDate:    o.OrderDate.Format(time.RFC3339),
		OrderGroupID: o.GroupID,
	}
}

func toPaymentResponse(p model.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		CustomerID:  p.CustomerID,
		Amount:      float64(p.AmountCents) / 100,
		PaymentDate: p.PaymentDate.Format(time.RFC3339),
		Note:        p.Note,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListCustomers возвращает всех клиентов, отсортированных по имени.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("list customers error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		resp = append(resp, toCustomerResponse(c))
	}

	h.writeJSON(w, resp)
}

// CreateCustomer создаёт нового клиента.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidName(req.Name) {
		http.Error(w, "name must not be empty", http.StatusBadRequest)
		return
	}

	c, err := h.service.CreateCustomer(r.Context(), req.Name, req.Phone)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCustomerName) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("create customer error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, toCustomerResponse(*c))
}

// UpdateCustomer обновляет имя и телефон клиента.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidName(req.Name) {
		http.Error(w, "name must not be empty", http.StatusBadRequest)
		return
	}

	c, err := h.service.UpdateCustomer(r.Context(), id, req.Name, req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCustomerName):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrCustomerNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.logger.Error("update customer error", zap.Error(err), zap.Int64("customerID", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, toCustomerResponse(*c))
}

type messageResponse struct {
	Message string `json:"message"`
}

// DeleteCustomer удаляет клиента без заказов и платежей.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.DeleteCustomer(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCustomerHasOrders), errors.Is(err, repository.ErrCustomerHasPayments):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, repository.ErrCustomerNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.logger.Error("delete customer error", zap.Error(err), zap.Int64("customerID", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, messageResponse{Message: "customer deleted"})
}

type customerDetailResponse struct {
	Customer customerResponse  `json:"customer"`
	Orders   []orderResponse   `json:"orders"`
	Payments []paymentResponse `json:"payments"`
}

// GetCustomerDetail возвращает клиента вместе с историей заказов и платежей.
func (h *Handler) GetCustomerDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	detail, err := h.service.GetCustomerDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("get customer detail error", zap.Error(err), zap.Int64("customerID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := customerDetailResponse{
		Customer: toCustomerResponse(detail.Customer),
		Orders:   make([]orderResponse, 0, len(detail.Orders)),
		Payments: make([]paymentResponse, 0, len(detail.Payments)),
	}
	for _, o := range detail.Orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}
	for _, p := range detail.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}

	h.writeJSON(w, resp)
}

type orderSpecRequest struct {
	CustomerID   int64   `json:"customer_id"`
	Quantity     int64   `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	TotalPrice   float64 `json:"total_price"`
	OrderGroupID *string `json:"order_group_id,omitempty"`
}

type orderBatchRequest struct {
	Orders []orderSpecRequest `json:"orders"`
}

type orderBatchResponse struct {
	Count int     `json:"count"`
	IDs   []int64 `json:"ids"`
}

// CreateOrders создаёт пакет заказов одной транзакцией.
func (h *Handler) CreateOrders(w http.ResponseWriter, r *http.Request) {
	var req orderBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	inputs := make([]service.OrderInput, 0, len(req.Orders))
	for _, o := range req.Orders {
		inputs = append(inputs, service.OrderInput{
			CustomerID: o.CustomerID,
			Quantity:   o.Quantity,
			UnitPrice:  o.UnitPrice,
			TotalPrice: o.TotalPrice,
			GroupID:    o.OrderGroupID,
		})
	}

	ids, err := h.service.CreateOrders(r.Context(), inputs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyOrderBatch), errors.Is(err, service.ErrInvalidOrderSpec):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrCustomerNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.logger.Error("create orders error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, orderBatchResponse{Count: len(ids), IDs: ids})
}

type paymentRequest struct {
	CustomerID int64   `json:"customer_id"`
	Amount     float64 `json:"amount"`
	Note       *string `json:"note,omitempty"`
}

// CreatePayment создаёт платёж и запускает погашение заказов клиента.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.CreatePayment(r.Context(), req.CustomerID, req.Amount, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPayment):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrCustomerNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.logger.Error("create payment error", zap.Error(err), zap.Int64("customerID", req.CustomerID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, toPaymentResponse(*p))
}

type dashboardResponse struct {
	TodayQuantity      int64   `json:"todayQuantity"`
	TodayRevenue       float64 `json:"todayRevenue"`
	TodayCustomerCount int64   `json:"todayCustomerCount"`
	TotalDebt          float64 `json:"totalDebt"`
}

// Dashboard возвращает сводку за сегодня и общий долг клиентов.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("dashboard error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, dashboardResponse{
		TodayQuantity:      stats.TodayQuantity,
		TodayRevenue:       float64(stats.TodayRevenueCents) / 100,
		TodayCustomerCount: stats.TodayCustomerCount,
		TotalDebt:          float64(stats.TotalDebtCents) / 100,
	})
}

type reportRowResponse struct {
	orderResponse
	CustomerName   string  `json:"customer_name"`
	CurrentBalance float64 `json:"current_balance"`
}

// Report возвращает заказы указанного дня вместе с данными клиентов.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if !validation.IsValidReportDate(date) {
		http.Error(w, "date must have format YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		http.Error(w, "date must have format YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	rows, err := h.service.Report(r.Context(), day)
	if err != nil {
		h.logger.Error("report error", zap.Error(err), zap.String("date", date))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]reportRowResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, reportRowResponse{
			orderResponse:  toOrderResponse(row.Order),
			CustomerName:   row.CustomerName,
			CurrentBalance: float64(row.CustomerBalanceCents) / 100,
		})
	}

	h.writeJSON(w, resp)
}
