// Package model содержит доменные сущности сервиса учёта пекарни.
package model

import "time"

// Customer представляет клиента пекарни с накопленным долгом.
// Положительный баланс означает, что клиент должен пекарне.
type Customer struct {
	ID           int64
	Name         string
	Phone        *string
	BalanceCents int64
	CreatedAt    time.Time
}

// OrderStatus описывает статус оплаты заказа.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
)

// Order описывает один заказ клиента. Суммы хранятся в копейках.
type Order struct {
	ID              int64
	CustomerID      int64
	Quantity        int64
	UnitPriceCents  int64
	TotalPriceCents int64
	Status          OrderStatus
	OrderDate       time.Time
	GroupID         *string
}

// OrderSpec описывает одну позицию пакетного создания заказов.
// TotalPriceCents принимается от клиента как есть и не пересчитывается.
type OrderSpec struct {
	CustomerID      int64
	Quantity        int64
	UnitPriceCents  int64
	TotalPriceCents int64
	GroupID         *string
}

// Payment описывает факт оплаты. Записи о платежах неизменяемы.
type Payment struct {
	ID          int64
	CustomerID  int64
	AmountCents int64
	PaymentDate time.Time
	Note        *string
}

// CustomerDetail содержит клиента вместе с историей его заказов и платежей.
type CustomerDetail struct {
	Customer Customer
	Orders   []Order
	Payments []Payment
}

// DashboardStats содержит сводку за сегодняшний день и общий долг.
type DashboardStats struct {
	TodayQuantity      int64
	TodayRevenueCents  int64
	TodayCustomerCount int64
	TotalDebtCents     int64
}

// ReportRow описывает строку дневного отчёта: заказ вместе с данными клиента.
type ReportRow struct {
	Order
	CustomerName         string
	CustomerBalanceCents int64
}
