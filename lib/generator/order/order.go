// Package orderGen генерирует случайные, но структурно-валидные снимки
// заказов для сервиса `order-generator`. Часть заказов намеренно делается
// "почти дублями" недавних заказов: тот же продавец и покупатель, но другое
// написание имени и телефона и немного другое время. Так детектор получает
// поток, на котором его правила действительно срабатывают.
package orderGen

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/YusovID/order-dedup/internal/detector/compare"
	"github.com/YusovID/order-dedup/internal/models"
)

const recentSize = 20

var (
	sellers    = []string{"seller-1", "seller-2", "seller-3"}
	warehouses = []string{"wh-msk", "wh-spb", "wh-kzn"}
)

// Generator хранит несколько последних заказов, из которых делаются дубли.
type Generator struct {
	mu      sync.Mutex
	recent  []*models.OrderSnapshot
	dupRate float64
	now     func() time.Time
}

// New создает генератор. dupRate - доля почти-дублей в потоке, от 0 до 1.
func New(dupRate float64) *Generator {
	return &Generator{
		dupRate: dupRate,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Next возвращает очередной заказ: новый либо почти-дубль недавнего.
func (g *Generator) Next() *models.OrderSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	var order *models.OrderSnapshot

	if len(g.recent) > 0 && gofakeit.Float64() < g.dupRate {
		src := g.recent[gofakeit.Number(0, len(g.recent)-1)]
		order = NearDuplicate(src)
	} else {
		order = Generate(g.now())
	}

	g.recent = append(g.recent, order)
	if len(g.recent) > recentSize {
		g.recent = g.recent[1:]
	}

	return order
}

// GenerateOrder возвращает ключ сообщения (ID продавца, чтобы заказы одного
// продавца попадали в одну партицию) и JSON очередного заказа.
func (g *Generator) GenerateOrder() (string, []byte, error) {
	order := g.Next()

	data, err := json.Marshal(order)
	if err != nil {
		return "", nil, fmt.Errorf("can't marshal order: %w", err)
	}

	return order.SellerID, data, nil
}

// Generate создает новый заказ, датированный at.
func Generate(at time.Time) *models.OrderSnapshot {
	// от 1 до 3 товаров в заказе
	count := gofakeit.Number(1, 3)
	products := make([]models.Product, count)
	total := decimal.Zero

	for i := range products {
		products[i] = generateProduct()
		total = total.Add(products[i].UnitPrice.Mul(decimal.NewFromInt(int64(products[i].Quantity))))
	}

	return &models.OrderSnapshot{
		ID:          gofakeit.UUID(),
		OrderNumber: strings.ToUpper(gofakeit.LetterN(4)) + gofakeit.DigitN(8),
		SellerID:    gofakeit.RandomString(sellers),
		WarehouseID: gofakeit.RandomString(warehouses),
		Customer: models.Customer{
			Name:            gofakeit.Name(),
			PhoneNumbers:    []string{gofakeit.PhoneFormatted()},
			ShippingAddress: gofakeit.Address().Address,
		},
		Products:   products,
		TotalPrice: total,
		OrderDate:  at,
	}
}

// NearDuplicate копирует src под новым ID и номером: имя, телефон и адрес
// записаны иначе, но после нормализации совпадают, время сдвинуто вперед
// на 1-90 минут.
func NearDuplicate(src *models.OrderSnapshot) *models.OrderSnapshot {
	dup := *src

	dup.ID = gofakeit.UUID()
	dup.OrderNumber = strings.ToUpper(gofakeit.LetterN(4)) + gofakeit.DigitN(8)
	dup.OrderDate = src.OrderDate.Add(time.Duration(gofakeit.Number(1, 90)) * time.Minute)

	dup.Customer = models.Customer{
		Name:            "  " + strings.ToUpper(src.Customer.Name),
		PhoneNumbers:    make([]string, len(src.Customer.PhoneNumbers)),
		ShippingAddress: strings.Join(strings.Fields(strings.ToLower(src.Customer.ShippingAddress)), "  "),
	}

	for i, phone := range src.Customer.PhoneNumbers {
		dup.Customer.PhoneNumbers[i] = reformatPhone(phone)
	}

	dup.Products = append([]models.Product(nil), src.Products...)

	return &dup
}

// reformatPhone переписывает номер в виде 123-456-7890.
func reformatPhone(phone string) string {
	digits := compare.NormalizePhone(phone)
	if len(digits) < 7 {
		return phone
	}

	return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
}

func generateProduct() models.Product {
	return models.Product{
		ProductID: fmt.Sprintf("sku-%d", gofakeit.Number(1000, 1100)),
		Quantity:  gofakeit.Number(1, 5),
		UnitPrice: decimal.NewFromFloat(gofakeit.Price(100, 1000)).Round(2),
	}
}
