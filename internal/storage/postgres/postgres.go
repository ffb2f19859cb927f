package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/YusovID/order-dedup/internal/config"
	"github.com/YusovID/order-dedup/internal/detector"
	"github.com/YusovID/order-dedup/internal/models"
	"github.com/YusovID/order-dedup/internal/storage"
	"github.com/YusovID/order-dedup/lib/logger/sl"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var orderColumns = []string{
	"id",
	"order_number",
	"seller_id",
	"warehouse_id",
	"customer_name",
	"phone_numbers",
	"shipping_address",
	"products",
	"total_price",
	"order_date",
}

type Storage struct {
	db  *sqlx.DB
	log *slog.Logger
}

func New(cfg config.Postgres, log *slog.Logger) (*Storage, error) {
	const fn = "storage.postgres.New"
	log = log.With("fn", fn)

	log.Info("starting storage initialization...")

	// открываем базу
	db, err := sqlx.Open("postgres", cfg.ConnString()+"?sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("%s: can't open database: %v", fn, err)
	}

	// проверяем, что к базе можно подключиться
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: can't connect to database: %v", fn, err)
	}

	return NewWithDB(db, log), nil
}

func NewWithDB(db *sqlx.DB, log *slog.Logger) *Storage {
	return &Storage{db: db, log: log}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

type orderRow struct {
	ID              string          `db:"id"`
	OrderNumber     string          `db:"order_number"`
	SellerID        string          `db:"seller_id"`
	WarehouseID     string          `db:"warehouse_id"`
	CustomerName    string          `db:"customer_name"`
	PhoneNumbers    pq.StringArray  `db:"phone_numbers"`
	ShippingAddress string          `db:"shipping_address"`
	Products        []byte          `db:"products"`
	TotalPrice      decimal.Decimal `db:"total_price"`
	OrderDate       time.Time       `db:"order_date"`
}

// snapshot преобразует строку в заказ. Нечитаемые товары отбрасываются, но
// сама строка остается.
func (r *orderRow) snapshot(log *slog.Logger) *models.OrderSnapshot {
	order := &models.OrderSnapshot{
		ID:          r.ID,
		OrderNumber: r.OrderNumber,
		SellerID:    r.SellerID,
		WarehouseID: r.WarehouseID,
		Customer: models.Customer{
			Name:            r.CustomerName,
			PhoneNumbers:    []string(r.PhoneNumbers),
			ShippingAddress: r.ShippingAddress,
		},
		TotalPrice: r.TotalPrice,
		OrderDate:  r.OrderDate,
	}

	if len(r.Products) > 0 {
		if err := json.Unmarshal(r.Products, &order.Products); err != nil {
			log.Warn("can't unmarshal order products", slog.String("order_id", r.ID), sl.Err(err))
			order.Products = nil
		}
	}

	return order
}

// FindCandidates возвращает заказы q.SellerID с датой в [q.From, q.To],
// от старых к новым.
func (s *Storage) FindCandidates(ctx context.Context, q detector.CandidateQuery) ([]*models.OrderSnapshot, error) {
	const fn = "storage.postgres.FindCandidates"

	builder := psql.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"seller_id": q.SellerID}).
		Where(sq.GtOrEq{"order_date": q.From}).
		Where(sq.LtOrEq{"order_date": q.To})

	if q.ExcludeOrderID != "" {
		builder = builder.Where(sq.NotEq{"id": q.ExcludeOrderID})
	}

	query, args, err := builder.OrderBy("order_date", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: can't build query: %w", fn, err)
	}

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: can't select candidates: %w", fn, err)
	}

	orders := make([]*models.OrderSnapshot, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].snapshot(s.log))
	}

	return orders, nil
}

func (s *Storage) GetOrder(ctx context.Context, orderID string) (*models.OrderSnapshot, error) {
	const fn = "storage.postgres.GetOrder"

	query, args, err := psql.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: can't build query: %w", fn, err)
	}

	var row orderRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNoOrder
		}

		return nil, fmt.Errorf("%s: can't get order: %w", fn, err)
	}

	return row.snapshot(s.log), nil
}

// SaveOrder вставляет заказ. Пустой ID заменяется новым UUID.
func (s *Storage) SaveOrder(ctx context.Context, order *models.OrderSnapshot) error {
	const fn = "storage.postgres.SaveOrder"

	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	products, err := json.Marshal(order.Products)
	if err != nil {
		return fmt.Errorf("%s: can't marshal products: %w", fn, err)
	}

	phones := order.Customer.PhoneNumbers
	if phones == nil {
		phones = []string{}
	}

	query, args, err := psql.Insert("orders").
		Columns(orderColumns...).
		Values(
			order.ID,
			order.OrderNumber,
			order.SellerID,
			order.WarehouseID,
			order.Customer.Name,
			pq.StringArray(phones),
			order.Customer.ShippingAddress,
			products,
			order.TotalPrice,
			order.OrderDate,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: can't build query: %w", fn, err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return storage.ErrOrderExists
		}

		return fmt.Errorf("%s: can't insert order: %w", fn, err)
	}

	return nil
}

// Policy возвращает политику sellerID либо nil, если ее нет.
func (s *Storage) Policy(ctx context.Context, sellerID string) (*models.DetectionPolicy, error) {
	const fn = "storage.postgres.Policy"

	query, args, err := psql.Select("policy").
		From("detection_policies").
		Where(sq.Eq{"seller_id": sellerID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: can't build query: %w", fn, err)
	}

	var raw []byte
	if err := s.db.GetContext(ctx, &raw, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: can't get policy: %w", fn, err)
	}

	var policy models.DetectionPolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return nil, fmt.Errorf("%s: can't unmarshal policy: %w", fn, err)
	}

	return &policy, nil
}

// SavePolicy проверяет политику sellerID и сохраняет ее (upsert).
func (s *Storage) SavePolicy(ctx context.Context, sellerID string, policy *models.DetectionPolicy) error {
	const fn = "storage.postgres.SavePolicy"

	if err := policy.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("%s: can't marshal policy: %w", fn, err)
	}

	query, args, err := psql.Insert("detection_policies").
		Columns("seller_id", "policy").
		Values(sellerID, raw).
		Suffix("ON CONFLICT (seller_id) DO UPDATE SET policy = EXCLUDED.policy, updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: can't build query: %w", fn, err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: can't upsert policy: %w", fn, err)
	}

	return nil
}
