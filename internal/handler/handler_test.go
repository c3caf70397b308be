package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/bakery-ledger/internal/model"
	"github.com/mmeshcher/bakery-ledger/internal/repository"
	"github.com/mmeshcher/bakery-ledger/internal/service"
)

type stubService struct {
	createdCustomer *model.Customer
	createErr       error

	updatedCustomer *model.Customer
	updateErr       error

	deleteErr error

	customers    []model.Customer
	customersErr error

	detail    *model.CustomerDetail
	detailErr error

	orderIDs  []int64
	ordersErr error

	payment    *model.Payment
	paymentErr error

	stats    *model.DashboardStats
	statsErr error

	reportRows []model.ReportRow
	reportErr  error
}

func (s *stubService) CreateCustomer(ctx context.Context, name string, phone *string) (*model.Customer, error) {
	return s.createdCustomer, s.createErr
}

func (s *stubService) UpdateCustomer(ctx context.Context, id int64, name string, phone *string) (*model.Customer, error) {
	return s.updatedCustomer, s.updateErr
}

func (s *stubService) DeleteCustomer(ctx context.Context, id int64) error {
	return s.deleteErr
}

func (s *stubService) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.customers, s.customersErr
}

func (s *stubService) GetCustomerDetail(ctx context.Context, id int64) (*model.CustomerDetail, error) {
	return s.detail, s.detailErr
}

func (s *stubService) CreateOrders(ctx context.Context, inputs []service.OrderInput) ([]int64, error) {
	if s.ordersErr != nil {
		return nil, s.ordersErr
	}
	if len(inputs) == 0 {
		return nil, service.ErrEmptyOrderBatch
	}
	return s.orderIDs, nil
}

func (s *stubService) CreatePayment(ctx context.Context, customerID int64, amount float64, note *string) (*model.Payment, error) {
	return s.payment, s.paymentErr
}

func (s *stubService) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	return s.stats, s.statsErr
}

func (s *stubService) Report(ctx context.Context, day time.Time) ([]model.ReportRow, error) {
	return s.reportRows, s.reportErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger)
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	return rec.Result()
}

func TestCreateCustomer_Success(t *testing.T) {
	svc := &stubService{
		createdCustomer: &model.Customer{ID: 1, Name: "Ayşe", CreatedAt: time.Now()},
	}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodPost, "/api/customers", customerRequest{Name: "Ayşe"})
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp customerResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 1 || resp.Name != "Ayşe" {
		t.Fatalf("response = %+v, want id 1 and name Ayşe", resp)
	}
	if resp.CurrentBalance != 0 {
		t.Fatalf("new customer balance = %v, want 0", resp.CurrentBalance)
	}
}

func TestCreateCustomer_EmptyName(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := doRequest(t, h, http.MethodPost, "/api/customers", customerRequest{Name: "   "})
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestUpdateCustomer_NotFound(t *testing.T) {
	svc := &stubService{updateErr: repository.ErrCustomerNotFound}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodPut, "/api/customers/42", customerRequest{Name: "Ali"})
	defer res.Body.Close()

	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestDeleteCustomer_Conflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "has orders", err: repository.ErrCustomerHasOrders},
		{name: "has payments", err: repository.ErrCustomerHasPayments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{deleteErr: tt.err})

			res := doRequest(t, h, http.MethodDelete, "/api/customers/1", nil)
			defer res.Body.Close()

			if res.StatusCode != http.StatusConflict {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
			}
		})
	}
}

func TestDeleteCustomer_Success(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := doRequest(t, h, http.MethodDelete, "/api/customers/1", nil)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp messageResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message == "" {
		t.Fatalf("expected non-empty message")
	}
}

func TestGetCustomerDetail_NotFound(t *testing.T) {
	h := newTestHandler(t, &stubService{detailErr: repository.ErrCustomerNotFound})

	res := doRequest(t, h, http.MethodGet, "/api/customers/99", nil)
	defer res.Body.Close()

	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestGetCustomerDetail_Success(t *testing.T) {
	now := time.Now()
	svc := &stubService{
		detail: &model.CustomerDetail{
			Customer: model.Customer{ID: 1, Name: "Ayşe", BalanceCents: 5000, CreatedAt: now},
			Orders: []model.Order{
				{ID: 10, CustomerID: 1, Quantity: 10, UnitPriceCents: 500, TotalPriceCents: 5000, Status: model.OrderStatusPending, OrderDate: now},
			},
			Payments: []model.Payment{},
		},
	}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodGet, "/api/customers/1", nil)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp customerDetailResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Customer.CurrentBalance != 50 {
		t.Fatalf("balance = %v, want 50", resp.Customer.CurrentBalance)
	}
	if len(resp.Orders) != 1 || resp.Orders[0].Status != string(model.OrderStatusPending) {
		t.Fatalf("orders = %+v, want one pending order", resp.Orders)
	}
	if resp.Payments == nil {
		t.Fatalf("payments must be an empty array, not null")
	}
}

func TestCreateOrders_EmptyBatch(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := doRequest(t, h, http.MethodPost, "/api/orders", orderBatchRequest{Orders: []orderSpecRequest{}})
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestCreateOrders_MalformedJSON(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte(`{"orders": 42}`)))
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestCreateOrders_Success(t *testing.T) {
	svc := &stubService{orderIDs: []int64{10, 11}}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodPost, "/api/orders", orderBatchRequest{
		Orders: []orderSpecRequest{
			{CustomerID: 1, Quantity: 10, UnitPrice: 5, TotalPrice: 50},
			{CustomerID: 2, Quantity: 4, UnitPrice: 2.5, TotalPrice: 10},
		},
	})
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp orderBatchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.IDs) != 2 {
		t.Fatalf("response = %+v, want count 2 and two ids", resp)
	}
	if resp.IDs[0] != 10 || resp.IDs[1] != 11 {
		t.Fatalf("ids = %v, want [10 11] in input order", resp.IDs)
	}
}

func TestCreateOrders_UnknownCustomer(t *testing.T) {
	svc := &stubService{ordersErr: repository.ErrCustomerNotFound}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodPost, "/api/orders", orderBatchRequest{
		Orders: []orderSpecRequest{
			{CustomerID: 99, Quantity: 1, UnitPrice: 5, TotalPrice: 5},
		},
	})
	defer res.Body.Close()

	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestCreatePayment_Success(t *testing.T) {
	now := time.Now()
	svc := &stubService{
		payment: &model.Payment{ID: 5, CustomerID: 1, AmountCents: 5000, PaymentDate: now},
	}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodPost, "/api/payments", paymentRequest{CustomerID: 1, Amount: 50})
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp paymentResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 5 || resp.Amount != 50 {
		t.Fatalf("response = %+v, want id 5 and amount 50", resp)
	}
}

func TestCreatePayment_Validation(t *testing.T) {
	svc := &stubService{paymentErr: service.ErrInvalidPayment}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodPost, "/api/payments", paymentRequest{CustomerID: 1, Amount: 0})
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestDashboard(t *testing.T) {
	svc := &stubService{
		stats: &model.DashboardStats{
			TodayQuantity:      120,
			TodayRevenueCents:  45000,
			TodayCustomerCount: 7,
			TotalDebtCents:     123450,
		},
	}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodGet, "/api/dashboard", nil)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp dashboardResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TodayQuantity != 120 || resp.TodayRevenue != 450 {
		t.Fatalf("response = %+v, want quantity 120 and revenue 450", resp)
	}
	if resp.TodayCustomerCount != 7 || resp.TotalDebt != 1234.5 {
		t.Fatalf("response = %+v, want 7 customers and debt 1234.5", resp)
	}
}

func TestReport_BadDate(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	for _, path := range []string{"/api/reports", "/api/reports?date=nonsense", "/api/reports?date=2025-9-1"} {
		res := doRequest(t, h, http.MethodGet, path, nil)
		res.Body.Close()

		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want %d", path, res.StatusCode, http.StatusBadRequest)
		}
	}
}

func TestReport_Success(t *testing.T) {
	now := time.Now()
	svc := &stubService{
		reportRows: []model.ReportRow{
			{
				Order:                model.Order{ID: 1, CustomerID: 1, Quantity: 10, UnitPriceCents: 500, TotalPriceCents: 5000, Status: model.OrderStatusPending, OrderDate: now},
				CustomerName:         "Ayşe",
				CustomerBalanceCents: 5000,
			},
		},
	}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodGet, "/api/reports?date=2025-09-01", nil)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp []reportRowResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].CustomerName != "Ayşe" || resp[0].CurrentBalance != 50 {
		t.Fatalf("response = %+v, want one row for Ayşe with balance 50", resp)
	}
}
