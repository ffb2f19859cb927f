package compare

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YusovID/order-dedup/internal/models"
)

func order(mod func(o *models.OrderSnapshot)) *models.OrderSnapshot {
	o := &models.OrderSnapshot{
		ID:          "o-1",
		SellerID:    "seller-1",
		WarehouseID: "wh-1",
		Customer: models.Customer{
			Name:            "John Doe",
			PhoneNumbers:    []string{"+1234567890"},
			ShippingAddress: "221B Baker Street, London",
		},
		Products: []models.Product{
			{ProductID: "p-1", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
		},
		TotalPrice: decimal.RequireFromString("10.00"),
	}
	if mod != nil {
		mod(o)
	}

	return o
}

func TestCustomerPhone(t *testing.T) {
	tests := []struct {
		name      string
		subject   []string
		candidate []string
		want      bool
	}{
		{"formatted vs plain", []string{"(123) 456-7890"}, []string{"1234567890"}, true},
		{"plus prefix", []string{"+1234567890"}, []string{"(123) 456-7890"}, true},
		{"second number intersects", []string{"111", "222-333"}, []string{"999", "222 333"}, true},
		{"different numbers", []string{"1234567890"}, []string{"1234567891"}, false},
		{"both empty strings", []string{""}, []string{""}, false},
		{"only punctuation", []string{"+-()"}, []string{"()"}, false},
		{"nil phones", nil, nil, false},
		{"one side nil", []string{"123"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := order(func(o *models.OrderSnapshot) { o.Customer.PhoneNumbers = tt.subject })
			c := order(func(o *models.OrderSnapshot) { o.Customer.PhoneNumbers = tt.candidate })

			assert.Equal(t, tt.want, CustomerPhone(s, c))
			assert.Equal(t, tt.want, CustomerPhone(c, s))
		})
	}
}

func TestCustomerName(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "case and spaces ignored", a: "JOHN DOE", b: "  john doe ", want: true},
		{name: "different names", a: "John Doe", b: "Jane Doe"},
		{name: "both empty", a: "", b: ""},
		{name: "both blank after trim", a: "   ", b: "\t"},
		{name: "one empty", a: "John Doe", b: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := order(func(o *models.OrderSnapshot) { o.Customer.Name = tt.a })
			c := order(func(o *models.OrderSnapshot) { o.Customer.Name = tt.b })
			assert.Equal(t, tt.want, CustomerName(s, c))
		})
	}
}

func TestCustomerAddress(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "whitespace collapsed", a: "221B  Baker\tStreet,\n London ", b: "221b baker street, london", want: true},
		{name: "different house", a: "221B Baker Street, London", b: "221 Baker Street, London"},
		{name: "both empty", a: "", b: ""},
		{name: "both whitespace only", a: " \n ", b: "  "},
		{name: "one empty", a: "", b: "221B Baker Street, London"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := order(func(o *models.OrderSnapshot) { o.Customer.ShippingAddress = tt.a })
			c := order(func(o *models.OrderSnapshot) { o.Customer.ShippingAddress = tt.b })
			assert.Equal(t, tt.want, CustomerAddress(s, c))
		})
	}
}

func TestProductID(t *testing.T) {
	s := order(func(o *models.OrderSnapshot) {
		o.Products = []models.Product{{ProductID: "p-1", Quantity: 1}, {ProductID: "p-2", Quantity: 3}}
	})
	c := order(func(o *models.OrderSnapshot) {
		o.Products = []models.Product{{ProductID: "p-2", Quantity: 10, UnitPrice: decimal.NewFromInt(99)}}
	})
	assert.True(t, ProductID(s, c))

	c.Products = []models.Product{{ProductID: "p-3"}}
	assert.False(t, ProductID(s, c))

	s.Products = []models.Product{{ProductID: ""}}
	c.Products = []models.Product{{ProductID: ""}}
	assert.False(t, ProductID(s, c), "blank identifiers must not match")
}

func TestOrderTotal(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"10.00", "10.00", true},
		{"10.00", "10.009", true},
		{"10.00", "10.01", false},
		{"0.1", "0.3", false},
		{"100", "99.995", true},
	}

	for _, tt := range tests {
		s := order(func(o *models.OrderSnapshot) { o.TotalPrice = decimal.RequireFromString(tt.a) })
		c := order(func(o *models.OrderSnapshot) { o.TotalPrice = decimal.RequireFromString(tt.b) })
		assert.Equal(t, tt.want, OrderTotal(s, c), "%s vs %s", tt.a, tt.b)
	}
}

func TestWarehouse(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "same id", a: "wh-1", b: "wh-1", want: true},
		{name: "comparison is exact", a: "wh-1", b: "WH-1"},
		{name: "both empty", a: "", b: ""},
		{name: "one empty", a: "wh-1", b: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := order(func(o *models.OrderSnapshot) { o.WarehouseID = tt.a })
			c := order(func(o *models.OrderSnapshot) { o.WarehouseID = tt.b })
			assert.Equal(t, tt.want, Warehouse(s, c))
		})
	}
}

func TestNilSnapshotsNeverMatch(t *testing.T) {
	for field, cmp := range Default() {
		assert.False(t, cmp(nil, order(nil)), field)
		assert.False(t, cmp(order(nil), nil), field)
	}
}

func TestDefaultTableCoversAllFields(t *testing.T) {
	table := Default()

	for _, f := range []models.FieldType{
		models.FieldCustomerName, models.FieldCustomerPhone, models.FieldCustomerAddress,
		models.FieldProductID, models.FieldProductName, models.FieldProductCode,
		models.FieldOrderTotal, models.FieldWarehouse,
	} {
		_, ok := table.Lookup(f)
		assert.True(t, ok, f)
	}

	_, ok := table.Lookup("EMAIL")
	assert.False(t, ok)
}

func TestTableWithDoesNotMutateOriginal(t *testing.T) {
	base := Default()
	always := func(_, _ *models.OrderSnapshot) bool { return true }

	swapped := base.With(models.FieldProductName, always)

	s := order(func(o *models.OrderSnapshot) { o.Products = []models.Product{{ProductID: "a"}} })
	c := order(func(o *models.OrderSnapshot) { o.Products = []models.Product{{ProductID: "b"}} })

	cmp, ok := swapped.Lookup(models.FieldProductName)
	require.True(t, ok)
	assert.True(t, cmp(s, c))

	cmp, ok = base.Lookup(models.FieldProductName)
	require.True(t, ok)
	assert.False(t, cmp(s, c))
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "1234567890", NormalizePhone("+1 (234) 567-890"))
	assert.Equal(t, "", NormalizePhone(""))
	assert.Equal(t, "john doe", NormalizeName("  John DOE\t"))
	assert.Equal(t, "a b c", NormalizeAddress("  A \n\t B   c "))
}
