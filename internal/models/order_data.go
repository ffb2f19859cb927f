package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSnapshot - минимальное представление заказа, с которым работает детектор дублей.
// В рамках одного вызова детектора снимок не изменяется.
type OrderSnapshot struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	SellerID    string `json:"seller_id" validate:"required"`
	WarehouseID string `json:"warehouse_id"`

	Customer Customer  `json:"customer" validate:"required"`
	Products []Product `json:"products" validate:"dive"`

	TotalPrice decimal.Decimal `json:"total_price"`
	OrderDate  time.Time       `json:"order_date" validate:"required"`

	// ExcludeOrderID исключает заказ из выборки кандидатов.
	// Используется при повторной проверке редактируемого заказа.
	ExcludeOrderID string `json:"exclude_order_id,omitempty"`
}

type Customer struct {
	Name            string   `json:"name"`
	PhoneNumbers    []string `json:"phone_numbers"`
	ShippingAddress string   `json:"shipping_address"`
}

type Product struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
