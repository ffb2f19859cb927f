package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YusovID/order-dedup/internal/detector"
	"github.com/YusovID/order-dedup/internal/models"
	"github.com/YusovID/order-dedup/internal/storage"
	"github.com/YusovID/order-dedup/lib/logger/slogdiscard"
)

func newMock(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return NewWithDB(sqlx.NewDb(db, "sqlmock"), slogdiscard.NewDiscardLogger()), mock
}

func orderRows() *sqlmock.Rows {
	return sqlmock.NewRows(orderColumns)
}

func TestFindCandidates(t *testing.T) {
	s, mock := newMock(t)

	from := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	to := from.Add(4 * time.Hour)

	rows := orderRows().
		AddRow("o-1", "N-1", "seller-1", "wh-1", "Jane Doe", `{"+7 (900) 111-22-33"}`, "1 Main St",
			`[{"product_id":"p-1","quantity":2,"unit_price":"5.25"}]`, "10.50", from.Add(time.Hour)).
		AddRow("o-2", "N-2", "seller-1", "wh-2", "John Roe", "{}", "2 Side St",
			`not json`, "3", from.Add(2*time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, order_number, seller_id, warehouse_id, customer_name, phone_numbers, shipping_address, products, total_price, order_date "+
			"FROM orders WHERE seller_id = $1 AND order_date >= $2 AND order_date <= $3 AND id <> $4 ORDER BY order_date, id",
	)).
		WithArgs("seller-1", from, to, "o-9").
		WillReturnRows(rows)

	got, err := s.FindCandidates(context.Background(), detector.CandidateQuery{
		SellerID:       "seller-1",
		From:           from,
		To:             to,
		ExcludeOrderID: "o-9",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "o-1", got[0].ID)
	assert.Equal(t, []string{"+7 (900) 111-22-33"}, got[0].Customer.PhoneNumbers)
	require.Len(t, got[0].Products, 1)
	assert.Equal(t, "p-1", got[0].Products[0].ProductID)
	assert.True(t, got[0].TotalPrice.Equal(decimal.RequireFromString("10.50")))

	// битые товары не отбрасывают строку
	assert.Equal(t, "o-2", got[1].ID)
	assert.Empty(t, got[1].Products)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidatesWithoutExclusion(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE seller_id = $1 AND order_date >= $2 AND order_date <= $3 ORDER BY")).
		WillReturnRows(orderRows())

	got, err := s.FindCandidates(context.Background(), detector.CandidateQuery{SellerID: "s"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidatesQueryError(t *testing.T) {
	s, mock := newMock(t)

	wantErr := errors.New("connection reset")
	mock.ExpectQuery("FROM orders").WillReturnError(wantErr)

	_, err := s.FindCandidates(context.Background(), detector.CandidateQuery{SellerID: "s"})
	assert.ErrorIs(t, err, wantErr)
}

func TestGetOrderNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(orderRows())

	_, err := s.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNoOrder)
}

func TestSaveOrderAssignsID(t *testing.T) {
	s, mock := newMock(t)

	order := &models.OrderSnapshot{
		SellerID:   "seller-1",
		Customer:   models.Customer{Name: "Jane"},
		TotalPrice: decimal.NewFromInt(12),
		OrderDate:  time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders (id,order_number,seller_id")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SaveOrder(context.Background(), order))
	assert.NotEmpty(t, order.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveOrderDuplicateKey(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec("INSERT INTO orders").
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := s.SaveOrder(context.Background(), &models.OrderSnapshot{ID: "o-1", SellerID: "s"})
	assert.ErrorIs(t, err, storage.ErrOrderExists)
}

func TestPolicy(t *testing.T) {
	s, mock := newMock(t)

	policy := &models.DetectionPolicy{
		IsEnabled:         true,
		DefaultTimeWindow: models.TimeWindow{Value: 6, Unit: models.UnitHours},
		Rules: []models.Rule{{
			Name:            "Phone",
			IsActive:        true,
			LogicalOperator: models.OperatorOr,
			TimeWindow:      models.TimeWindow{Value: 1, Unit: models.UnitDays},
			Conditions:      []models.Condition{{Field: models.FieldCustomerPhone, Enabled: true}},
		}},
	}
	raw, err := json.Marshal(policy)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT policy FROM detection_policies WHERE seller_id = $1")).
		WithArgs("seller-1").
		WillReturnRows(sqlmock.NewRows([]string{"policy"}).AddRow(raw))

	got, err := s.Policy(context.Background(), "seller-1")
	require.NoError(t, err)
	assert.Equal(t, policy, got)
}

func TestPolicyMissing(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery("FROM detection_policies").WillReturnRows(sqlmock.NewRows([]string{"policy"}))

	got, err := s.Policy(context.Background(), "seller-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSavePolicy(t *testing.T) {
	s, mock := newMock(t)

	policy := &models.DetectionPolicy{
		IsEnabled:         true,
		DefaultTimeWindow: models.TimeWindow{Value: 30, Unit: models.UnitMinutes},
	}

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO detection_policies (seller_id,policy) VALUES ($1,$2) ON CONFLICT (seller_id) DO UPDATE",
	)).
		WithArgs("seller-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SavePolicy(context.Background(), "seller-1", policy))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePolicyRejectsInvalid(t *testing.T) {
	s, mock := newMock(t)

	err := s.SavePolicy(context.Background(), "seller-1", &models.DetectionPolicy{})
	assert.ErrorIs(t, err, models.ErrInvalidPolicy)
	assert.NoError(t, mock.ExpectationsWereMet())
}
