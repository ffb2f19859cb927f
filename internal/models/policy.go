package models

import (
	"errors"
	"fmt"
)

// FieldType - поле заказа, на которое может ссылаться условие правила.
type FieldType string

const (
	FieldCustomerName    FieldType = "CUSTOMER_NAME"
	FieldCustomerPhone   FieldType = "CUSTOMER_PHONE"
	FieldCustomerAddress FieldType = "CUSTOMER_ADDRESS"
	FieldProductID       FieldType = "PRODUCT_ID"
	FieldProductName     FieldType = "PRODUCT_NAME"
	FieldProductCode     FieldType = "PRODUCT_CODE"
	FieldOrderTotal      FieldType = "ORDER_TOTAL"
	FieldWarehouse       FieldType = "WAREHOUSE"
)

func (f FieldType) IsValid() bool {
	switch f {
	case FieldCustomerName,
		FieldCustomerPhone,
		FieldCustomerAddress,
		FieldProductID,
		FieldProductName,
		FieldProductCode,
		FieldOrderTotal,
		FieldWarehouse:
		return true
	default:
		return false
	}
}

type LogicalOperator string

const (
	OperatorAnd LogicalOperator = "AND"
	OperatorOr  LogicalOperator = "OR"
)

func (o LogicalOperator) IsValid() bool {
	return o == OperatorAnd || o == OperatorOr
}

type TimeUnit string

const (
	UnitMinutes TimeUnit = "MINUTES"
	UnitHours   TimeUnit = "HOURS"
	UnitDays    TimeUnit = "DAYS"
)

func (u TimeUnit) IsValid() bool {
	switch u {
	case UnitMinutes, UnitHours, UnitDays:
		return true
	default:
		return false
	}
}

func (u TimeUnit) perDay() int {
	switch u {
	case UnitMinutes:
		return 24 * 60
	case UnitHours:
		return 24
	default:
		return 1
	}
}

// MaxWindowDays - наибольшее окно правила, которое принимает Validate:
// 365 дней, 8760 часов или 525600 минут.
const MaxWindowDays = 365

type TimeWindow struct {
	Value int      `json:"value"`
	Unit  TimeUnit `json:"unit"`
}

type Condition struct {
	Field   FieldType `json:"field"`
	Enabled bool      `json:"enabled"`
}

// Rule объединяет включенные условия логическим оператором в пределах окна.
// Name - только метка, которая возвращается в DuplicateMatch.
type Rule struct {
	Name            string          `json:"name"`
	IsActive        bool            `json:"is_active"`
	LogicalOperator LogicalOperator `json:"logical_operator"`
	TimeWindow      TimeWindow      `json:"time_window"`
	Conditions      []Condition     `json:"conditions"`
}

// DetectionPolicy - настройка поиска дублей для одного продавца.
type DetectionPolicy struct {
	IsEnabled         bool       `json:"is_enabled"`
	DefaultTimeWindow TimeWindow `json:"default_time_window"`
	Rules             []Rule     `json:"rules"`
}

var ErrInvalidPolicy = errors.New("invalid detection policy")

// Validate проверяет перечисления и окна. Детектор переживает и невалидную
// политику, Validate применяется при записи.
func (p *DetectionPolicy) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: policy is nil", ErrInvalidPolicy)
	}

	if err := p.DefaultTimeWindow.validate(); err != nil {
		return fmt.Errorf("%w: default time window: %v", ErrInvalidPolicy, err)
	}

	for i, rule := range p.Rules {
		if rule.Name == "" {
			return fmt.Errorf("%w: rule #%d has no name", ErrInvalidPolicy, i)
		}
		if !rule.LogicalOperator.IsValid() {
			return fmt.Errorf("%w: rule %q: unknown logical operator %q", ErrInvalidPolicy, rule.Name, rule.LogicalOperator)
		}
		if err := rule.TimeWindow.validate(); err != nil {
			return fmt.Errorf("%w: rule %q: %v", ErrInvalidPolicy, rule.Name, err)
		}
		for _, cond := range rule.Conditions {
			if !cond.Field.IsValid() {
				return fmt.Errorf("%w: rule %q: unknown field %q", ErrInvalidPolicy, rule.Name, cond.Field)
			}
		}
	}

	return nil
}

func (tw TimeWindow) validate() error {
	if tw.Value <= 0 {
		return fmt.Errorf("value must be positive (got %d)", tw.Value)
	}
	if !tw.Unit.IsValid() {
		return fmt.Errorf("unknown unit %q", tw.Unit)
	}
	if limit := MaxWindowDays * tw.Unit.perDay(); tw.Value > limit {
		return fmt.Errorf("value must not exceed %d %s (got %d)", limit, tw.Unit, tw.Value)
	}

	return nil
}
