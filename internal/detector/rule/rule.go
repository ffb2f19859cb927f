// Package rule решает, считается ли заказ-кандидат дублем проверяемого заказа
// по одному правилу.
package rule

import (
	"time"

	"github.com/YusovID/order-dedup/internal/detector/compare"
	"github.com/YusovID/order-dedup/internal/detector/window"
	"github.com/YusovID/order-dedup/internal/models"
)

// Evaluator применяет правило к паре заказов через таблицу компараторов.
// Состояния между вызовами не хранит, безопасен для конкурентного использования.
type Evaluator struct {
	comparators compare.Table
}

// New возвращает Evaluator поверх table. Для nil используется compare.Default().
func New(table compare.Table) *Evaluator {
	if table == nil {
		table = compare.Default()
	}

	return &Evaluator{comparators: table}
}

// Evaluate сообщает, совпадает ли candidate с subject по правилу r. delta -
// модуль разницы между датами заказов. delta, равная окну правила, еще
// попадает в окно.
func (e *Evaluator) Evaluate(r models.Rule, subject, candidate *models.OrderSnapshot, delta time.Duration) bool {
	if delta > window.Duration(r.TimeWindow) {
		return false
	}

	conditions := EnabledConditions(r)
	if len(conditions) == 0 {
		return false
	}

	switch r.LogicalOperator {
	case models.OperatorAnd:
		for _, c := range conditions {
			if !e.check(c.Field, subject, candidate) {
				return false
			}
		}
		return true

	case models.OperatorOr:
		for _, c := range conditions {
			if e.check(c.Field, subject, candidate) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// check запускает один компаратор. Отсутствующий компаратор или паника в нем
// считаются несовпадением.
func (e *Evaluator) check(field models.FieldType, subject, candidate *models.OrderSnapshot) (ok bool) {
	cmp, found := e.comparators.Lookup(field)
	if !found {
		return false
	}

	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	return cmp(subject, candidate)
}

// EnabledConditions возвращает включенные условия правила в исходном порядке.
func EnabledConditions(r models.Rule) []models.Condition {
	enabled := make([]models.Condition, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}

	return enabled
}
