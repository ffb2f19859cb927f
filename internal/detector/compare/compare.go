// Package compare содержит сравнения заказов по отдельным полям, из которых
// собираются правила поиска дублей. Каждый компаратор - чистая функция двух
// снимков заказа. Пустое значение поля никогда не совпадает.
package compare

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/YusovID/order-dedup/internal/models"
)

// Comparator сообщает, совпадают ли subject и candidate по одному полю.
type Comparator func(subject, candidate *models.OrderSnapshot) bool

// Table сопоставляет тип поля и компаратор. После сборки только для чтения.
type Table map[models.FieldType]Comparator

var totalTolerance = decimal.New(1, -2)

// Default возвращает новую таблицу с компаратором для каждого известного поля.
// PRODUCT_NAME и PRODUCT_CODE сравниваются по идентификаторам товаров, пока
// через Table.With не подключен компаратор на основе каталога.
func Default() Table {
	return Table{
		models.FieldCustomerName:    CustomerName,
		models.FieldCustomerPhone:   CustomerPhone,
		models.FieldCustomerAddress: CustomerAddress,
		models.FieldProductID:       ProductID,
		models.FieldProductName:     ProductID,
		models.FieldProductCode:     ProductID,
		models.FieldOrderTotal:      OrderTotal,
		models.FieldWarehouse:       Warehouse,
	}
}

// With возвращает копию t, в которой field связано с cmp.
func (t Table) With(field models.FieldType, cmp Comparator) Table {
	out := make(Table, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	out[field] = cmp

	return out
}

// Lookup возвращает компаратор для field, если он есть.
func (t Table) Lookup(field models.FieldType) (Comparator, bool) {
	cmp, ok := t[field]
	return cmp, ok && cmp != nil
}

// CustomerName сравнивает имена без учета регистра и крайних пробелов.
func CustomerName(subject, candidate *models.OrderSnapshot) bool {
	if subject == nil || candidate == nil {
		return false
	}

	return sameNonBlank(NormalizeName(subject.Customer.Name), NormalizeName(candidate.Customer.Name))
}

// CustomerPhone совпадает, если у заказов есть хотя бы один общий непустой
// номер. Из номеров перед сравнением остаются только цифры.
func CustomerPhone(subject, candidate *models.OrderSnapshot) bool {
	if subject == nil || candidate == nil {
		return false
	}

	phones := make(map[string]struct{}, len(subject.Customer.PhoneNumbers))
	for _, p := range subject.Customer.PhoneNumbers {
		if n := NormalizePhone(p); n != "" {
			phones[n] = struct{}{}
		}
	}

	if len(phones) == 0 {
		return false
	}

	for _, p := range candidate.Customer.PhoneNumbers {
		n := NormalizePhone(p)
		if n == "" {
			continue
		}
		if _, ok := phones[n]; ok {
			return true
		}
	}

	return false
}

func CustomerAddress(subject, candidate *models.OrderSnapshot) bool {
	if subject == nil || candidate == nil {
		return false
	}

	return sameNonBlank(
		NormalizeAddress(subject.Customer.ShippingAddress),
		NormalizeAddress(candidate.Customer.ShippingAddress),
	)
}

// ProductID совпадает, если у заказов есть общий идентификатор товара.
// Количество и цена не учитываются.
func ProductID(subject, candidate *models.OrderSnapshot) bool {
	if subject == nil || candidate == nil {
		return false
	}

	ids := make(map[string]struct{}, len(subject.Products))
	for _, p := range subject.Products {
		if p.ProductID != "" {
			ids[p.ProductID] = struct{}{}
		}
	}

	for _, p := range candidate.Products {
		if _, ok := ids[p.ProductID]; ok && p.ProductID != "" {
			return true
		}
	}

	return false
}

func OrderTotal(subject, candidate *models.OrderSnapshot) bool {
	if subject == nil || candidate == nil {
		return false
	}

	return subject.TotalPrice.Sub(candidate.TotalPrice).Abs().LessThan(totalTolerance)
}

// Warehouse сравнивает идентификаторы склада как есть, без нормализации.
// Заказы без склада между собой не совпадают.
func Warehouse(subject, candidate *models.OrderSnapshot) bool {
	if subject == nil || candidate == nil {
		return false
	}

	return sameNonBlank(subject.WarehouseID, candidate.WarehouseID)
}

func sameNonBlank(a, b string) bool {
	return a != "" && a == b
}

func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))

	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

func NormalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.FieldsFunc(address, unicode.IsSpace), " "))
}
