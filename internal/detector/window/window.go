// Package window переводит окна правил в длительности и абсолютные границы
// поиска кандидатов.
package window

import (
	"math"
	"time"

	"github.com/YusovID/order-dedup/internal/models"
)

const (
	minuteMillis int64 = 60_000
	hourMillis   int64 = 3_600_000
	dayMillis    int64 = 86_400_000

	// больше этого числа миллисекунд в time.Duration не помещается
	maxMillis = math.MaxInt64 / int64(time.Millisecond)
)

// DefaultUnit применяется к окну с единицей не из MINUTES, HOURS, DAYS.
// Сохраненные политики могут на это полагаться, менять только вместе с продуктом.
const DefaultUnit = models.UnitHours

// DurationMillis возвращает длину value единиц в миллисекундах. При
// переполнении int64 результат насыщается до math.MaxInt64 (math.MinInt64
// для отрицательных значений).
func DurationMillis(value int, unit models.TimeUnit) int64 {
	switch unit {
	case models.UnitMinutes:
		return scale(value, minuteMillis)
	case models.UnitHours:
		return scale(value, hourMillis)
	case models.UnitDays:
		return scale(value, dayMillis)
	default:
		return DurationMillis(value, DefaultUnit)
	}
}

// Duration возвращает длину окна. Окно длиннее примерно 292 лет насыщается до
// максимальной time.Duration и не становится отрицательным.
func Duration(tw models.TimeWindow) time.Duration {
	ms := DurationMillis(tw.Value, tw.Unit)

	switch {
	case ms > maxMillis:
		return time.Duration(math.MaxInt64)
	case ms < -maxMillis:
		return time.Duration(math.MinInt64)
	}

	return time.Duration(ms) * time.Millisecond
}

// Max возвращает самое широкое из окон либо ноль, если окон нет.
func Max(windows ...models.TimeWindow) time.Duration {
	var widest time.Duration
	for _, tw := range windows {
		if d := Duration(tw); d > widest {
			widest = d
		}
	}

	return widest
}

// Bounds возвращает отрезок [at-d, at+d] включительно. Отрицательная d
// считается нулевой.
func Bounds(at time.Time, d time.Duration) (from, to time.Time) {
	if d < 0 {
		d = 0
	}

	return at.Add(-d), at.Add(d)
}

// Delta возвращает модуль разницы между a и b.
func Delta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}

	return d
}

func scale(value int, unit int64) int64 {
	v := int64(value)

	switch {
	case v > math.MaxInt64/unit:
		return math.MaxInt64
	case v < math.MinInt64/unit:
		return math.MinInt64
	}

	return v * unit
}
