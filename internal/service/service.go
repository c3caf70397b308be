// Package service реализует бизнес-логику сервиса учёта пекарни.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/mmeshcher/bakery-ledger/internal/model"
	"github.com/mmeshcher/bakery-ledger/internal/validation"
)

// ErrEmptyCustomerName возвращается, если имя клиента пустое после обрезки пробелов.
var (
	ErrEmptyCustomerName = errors.New("customer name must not be empty")
	// ErrEmptyOrderBatch возвращается при попытке создать пустой пакет заказов.
	ErrEmptyOrderBatch = errors.New("order batch must not be empty")
	// ErrInvalidOrderSpec возвращается, если позиция пакета заполнена не полностью.
	ErrInvalidOrderSpec = errors.New("order requires customer_id and positive quantity, unit_price and total_price")
	// ErrInvalidPayment возвращается, если у платежа не указан клиент или сумма.
	ErrInvalidPayment = errors.New("payment requires customer_id and positive amount")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateCustomer(ctx context.Context, name string, phone *string) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, name string, phone *string) (*model.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	GetCustomerDetail(ctx context.Context, id int64) (*model.CustomerDetail, error)
	CreateOrders(ctx context.Context, specs []model.OrderSpec) ([]int64, error)
	CreatePayment(ctx context.Context, customerID, amountCents int64, note *string) (*model.Payment, error)
	Dashboard(ctx context.Context) (*model.DashboardStats, error)
	Report(ctx context.Context, day time.Time) ([]model.ReportRow, error)
}

// OrderInput описывает одну позицию пакетного создания заказов с суммами в лирах.
type OrderInput struct {
	CustomerID int64
	Quantity   int64
	UnitPrice  float64
	TotalPrice float64
	GroupID    *string
}

// Service содержит бизнес-логику сервиса учёта пекарни.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// CreateCustomer создаёт нового клиента с нулевым балансом.
func (s *Service) CreateCustomer(ctx context.Context, name string, phone *string) (*model.Customer, error) {
	trimmed := validation.TrimName(name)
	if trimmed == "" {
		return nil, ErrEmptyCustomerName
	}
	return s.repo.CreateCustomer(ctx, trimmed, phone)
}

// UpdateCustomer обновляет имя и телефон клиента.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, name string, phone *string) (*model.Customer, error) {
	trimmed := validation.TrimName(name)
	if trimmed == "" {
		return nil, ErrEmptyCustomerName
	}
	return s.repo.UpdateCustomer(ctx, id, trimmed, phone)
}

// DeleteCustomer удаляет клиента, если у него нет заказов и платежей.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.DeleteCustomer(ctx, id)
}

// ListCustomers возвращает всех клиентов, отсортированных по имени.
func (s *Service) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// GetCustomerDetail возвращает клиента вместе с историей заказов и платежей.
func (s *Service) GetCustomerDetail(ctx context.Context, id int64) (*model.CustomerDetail, error) {
	return s.repo.GetCustomerDetail(ctx, id)
}

// CreateOrders создаёт пакет заказов и возвращает идентификаторы созданных
// записей в порядке входных позиций. Указанная клиентом итоговая сумма
// принимается как есть и не пересчитывается из количества и цены.
func (s *Service) CreateOrders(ctx context.Context, inputs []OrderInput) ([]int64, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyOrderBatch
	}

	specs := make([]model.OrderSpec, 0, len(inputs))
	for _, in := range inputs {
		unitCents := int64(in.UnitPrice * 100)
		totalCents := int64(in.TotalPrice * 100)

		if in.CustomerID <= 0 || in.Quantity <= 0 || unitCents <= 0 || totalCents <= 0 {
			return nil, ErrInvalidOrderSpec
		}

		specs = append(specs, model.OrderSpec{
			CustomerID:      in.CustomerID,
			Quantity:        in.Quantity,
			UnitPriceCents:  unitCents,
			TotalPriceCents: totalCents,
			GroupID:         in.GroupID,
		})
	}

	return s.repo.CreateOrders(ctx, specs)
}

// CreatePayment создаёт платёж и запускает погашение заказов клиента.
func (s *Service) CreatePayment(ctx context.Context, customerID int64, amount float64, note *string) (*model.Payment, error) {
	amountCents := int64(amount * 100)
	if customerID <= 0 || amountCents <= 0 {
		return nil, ErrInvalidPayment
	}
	return s.repo.CreatePayment(ctx, customerID, amountCents, note)
}

// Dashboard возвращает сводку за сегодня и сумму долгов всех клиентов.
func (s *Service) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	return s.repo.Dashboard(ctx)
}

// Report возвращает заказы указанного дня вместе с данными клиентов.
func (s *Service) Report(ctx context.Context, day time.Time) ([]model.ReportRow, error) {
	return s.repo.Report(ctx, day)
}
