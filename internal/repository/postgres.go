// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/bakery-ledger/internal/ledger"
	"github.com/mmeshcher/bakery-ledger/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrCustomerNotFound возвращается, если клиент с указанным идентификатором не найден.
var (
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrCustomerHasOrders возвращается при попытке удалить клиента с заказами.
	ErrCustomerHasOrders = errors.New("customer has orders")
	// ErrCustomerHasPayments возвращается при попытке удалить клиента с платежами.
	ErrCustomerHasPayments = errors.New("customer has payments")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateCustomer создаёт нового клиента с нулевым балансом.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, name string, phone *string) (*model.Customer, error) {
	var c model.Customer
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (name, phone) VALUES ($1, $2)
		 RETURNING id, name, phone, current_balance, created_at`,
		name, phone,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.BalanceCents, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &c, nil
}

// UpdateCustomer обновляет имя и телефон клиента.
func (r *PostgresRepository) UpdateCustomer(ctx context.Context, id int64, name string, phone *string) (*model.Customer, error) {
	var c model.Customer
	err := r.pool.QueryRow(ctx,
		`UPDATE customers SET name = $2, phone = $3 WHERE id = $1
		 RETURNING id, name, phone, current_balance, created_at`,
		id, name, phone,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.BalanceCents, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return &c, nil
}

// DeleteCustomer удаляет клиента без заказов и платежей.
// Сначала проверяются заказы, затем платежи, и только потом выполняется удаление.
func (r *PostgresRepository) DeleteCustomer(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderCount int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE customer_id = $1`,
		id,
	).Scan(&orderCount)
	if err != nil {
		return fmt.Errorf("count orders: %w", err)
	}
	if orderCount > 0 {
		return ErrCustomerHasOrders
	}

	var paymentCount int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE customer_id = $1`,
		id,
	).Scan(&paymentCount)
	if err != nil {
		return fmt.Errorf("count payments: %w", err)
	}
	if paymentCount > 0 {
		return ErrCustomerHasPayments
	}

	cmdTag, err := tx.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ListCustomers возвращает всех клиентов, отсортированных по имени.
func (r *PostgresRepository) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, phone, current_balance, created_at
		 FROM customers
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.BalanceCents, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return customers, nil
}

// GetCustomerDetail возвращает клиента вместе с его заказами и платежами,
// новые записи первыми.
func (r *PostgresRepository) GetCustomerDetail(ctx context.Context, id int64) (*model.CustomerDetail, error) {
	var detail model.CustomerDetail

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, phone, current_balance, created_at FROM customers WHERE id = $1`,
		id,
	).Scan(
		&detail.Customer.ID,
		&detail.Customer.Name,
		&detail.Customer.Phone,
		&detail.Customer.BalanceCents,
		&detail.Customer.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	orders, err := r.getOrdersByCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Orders = orders

	payments, err := r.getPaymentsByCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Payments = payments

	return &detail, nil
}

func (r *PostgresRepository) getOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_id, quantity, unit_price, total_price, status, order_date, order_group_id
		 FROM orders
		 WHERE customer_id = $1
		 ORDER BY order_date DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var (
			o      model.Order
			status string
		)
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Quantity, &o.UnitPriceCents, &o.TotalPriceCents, &status, &o.OrderDate, &o.GroupID); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) getPaymentsByCustomer(ctx context.Context, customerID int64) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_id, amount, payment_date, note
		 FROM payments
		 WHERE customer_id = $1
		 ORDER BY payment_date DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.AmountCents, &p.PaymentDate, &p.Note); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

// CreateOrders создаёт пакет заказов в одной транзакции. Для каждой позиции
// строка клиента блокируется, вставляется заказ со статусом pending и баланс
// клиента увеличивается на сумму заказа. Любая ошибка откатывает весь пакет.
func (r *PostgresRepository) CreateOrders(ctx context.Context, specs []model.OrderSpec) ([]int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(specs))

	for _, spec := range specs {
		// Блокируем строку клиента: параллельные заказы и платежи
		// по одному клиенту выполняются строго по очереди.
		var balance int64
		err = tx.QueryRow(ctx,
			`SELECT current_balance FROM customers WHERE id = $1 FOR UPDATE`,
			spec.CustomerID,
		).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: id %d", ErrCustomerNotFound, spec.CustomerID)
			}
			return nil, fmt.Errorf("lock customer for update: %w", err)
		}

		var orderID int64
		err = tx.QueryRow(ctx,
			`INSERT INTO orders (customer_id, quantity, unit_price, total_price, status, order_group_id)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			spec.CustomerID, spec.Quantity, spec.UnitPriceCents, spec.TotalPriceCents,
			string(model.OrderStatusPending), spec.GroupID,
		).Scan(&orderID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return nil, fmt.Errorf("%w: id %d", ErrCustomerNotFound, spec.CustomerID)
			}
			return nil, fmt.Errorf("insert order: %w", err)
		}

		newBalance := ledger.BalanceAfterOrder(balance, spec.TotalPriceCents)

		_, err = tx.Exec(ctx,
			`UPDATE customers SET current_balance = $2 WHERE id = $1`,
			spec.CustomerID, newBalance,
		)
		if err != nil {
			return nil, fmt.Errorf("update balance: %w", err)
		}

		ids = append(ids, orderID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return ids, nil
}

// CreatePayment создаёт платёж в одной транзакции: вставляет запись,
// уменьшает баланс клиента и, если баланс стал нулевым или отрицательным,
// переводит все ожидающие заказы клиента в статус paid.
func (r *PostgresRepository) CreatePayment(ctx context.Context, customerID, amountCents int64, note *string) (*model.Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT current_balance FROM customers WHERE id = $1 FOR UPDATE`,
		customerID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrCustomerNotFound, customerID)
		}
		return nil, fmt.Errorf("lock customer for update: %w", err)
	}

	p := model.Payment{
		CustomerID:  customerID,
		AmountCents: amountCents,
		Note:        note,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO payments (customer_id, amount, note) VALUES ($1, $2, $3)
		 RETURNING id, payment_date`,
		customerID, amountCents, note,
	).Scan(&p.ID, &p.PaymentDate)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	newBalance := ledger.BalanceAfterPayment(balance, amountCents)

	_, err = tx.Exec(ctx,
		`UPDATE customers SET current_balance = $2 WHERE id = $1`,
		customerID, newBalance,
	)
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	if ledger.Settles(newBalance) {
		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2 WHERE customer_id = $1 AND status = $3`,
			customerID, string(model.OrderStatusPaid), string(model.OrderStatusPending),
		)
		if err != nil {
			return nil, fmt.Errorf("settle orders: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &p, nil
}

// Dashboard возвращает сводку за сегодня и сумму долгов всех клиентов.
func (r *PostgresRepository) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	var stats model.DashboardStats

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0), COALESCE(SUM(total_price), 0), COUNT(DISTINCT customer_id)
		 FROM orders
		 WHERE order_date::date = CURRENT_DATE`,
	).Scan(&stats.TodayQuantity, &stats.TodayRevenueCents, &stats.TodayCustomerCount)
	if err != nil {
		return nil, fmt.Errorf("sum today orders: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(current_balance), 0)
		 FROM customers
		 WHERE current_balance > 0`,
	).Scan(&stats.TotalDebtCents)
	if err != nil {
		return nil, fmt.Errorf("sum debt: %w", err)
	}

	return &stats, nil
}

// Report возвращает заказы указанного дня вместе с данными клиентов,
// отсортированные по имени клиента.
func (r *PostgresRepository) Report(ctx context.Context, day time.Time) ([]model.ReportRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.customer_id, o.quantity, o.unit_price, o.total_price, o.status,
		        o.order_date, o.order_group_id, c.name, c.current_balance
		 FROM orders o
		 JOIN customers c ON c.id = o.customer_id
		 WHERE o.order_date::date = $1::date
		 ORDER BY c.name, o.id`,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("select report: %w", err)
	}
	defer rows.Close()

	var res []model.ReportRow
	for rows.Next() {
		var (
			row    model.ReportRow
			status string
		)
		if err := rows.Scan(
			&row.ID, &row.CustomerID, &row.Quantity, &row.UnitPriceCents, &row.TotalPriceCents,
			&status, &row.OrderDate, &row.GroupID, &row.CustomerName, &row.CustomerBalanceCents,
		); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		row.Status = model.OrderStatus(status)
		res = append(res, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
