// Package detector определяет, похож ли новый заказ на недавний заказ того же
// продавца.
//
// Политика продавца читается при каждом вызове. Активные правила применяются к
// кандидатам, полученным одним запросом к хранилищу по самому широкому окну.
// Если политика включена, но активных правил нет, используется встроенное
// правило: имя покупателя ИЛИ телефон в пределах окна по умолчанию.
//
// Detect не блокирует создание заказа: при сбое хранилища заказ считается
// уникальным, а ошибка возвращается в поле Err результата.
package detector

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/YusovID/order-dedup/internal/detector/compare"
	"github.com/YusovID/order-dedup/internal/detector/rule"
	"github.com/YusovID/order-dedup/internal/detector/window"
	"github.com/YusovID/order-dedup/internal/metrics"
	"github.com/YusovID/order-dedup/internal/models"
	"github.com/YusovID/order-dedup/lib/logger/sl"
	wp "github.com/YusovID/order-dedup/lib/workerpool"
)

// DefaultRuleName - имя встроенного правила в найденных совпадениях.
const DefaultRuleName = "Default Rule"

var tracer = otel.Tracer("github.com/YusovID/order-dedup/internal/detector")

// PolicyReader возвращает политику продавца. nil без ошибки означает, что
// продавец поиск дублей не настраивал.
type PolicyReader interface {
	Policy(ctx context.Context, sellerID string) (*models.DetectionPolicy, error)
}

// CandidateQuery выбирает заказы SellerID с датой в отрезке [From, To].
type CandidateQuery struct {
	SellerID       string
	From           time.Time
	To             time.Time
	ExcludeOrderID string
}

// CandidateFinder возвращает кандидатов в стабильном порядке.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, q CandidateQuery) ([]*models.OrderSnapshot, error)
}

// Recorder принимает итог каждого вызова Detect: исход, число кандидатов и
// затраченное время. Реализуется пакетом metrics.
type Recorder interface {
	ObserveDetection(outcome string, candidates int, elapsed time.Duration)
}

// Detector ищет дубли по правилам продавца. Безопасен для конкурентного
// использования, создается через New.
type Detector struct {
	policies   PolicyReader
	candidates CandidateFinder
	evaluator  *rule.Evaluator
	recorder   Recorder
	log        *slog.Logger
	workers    int
	timeout    time.Duration
}

// Option настраивает Detector в New.
type Option func(*Detector)

// WithComparators заменяет таблицу компараторов, например чтобы подключить
// сравнение товаров по каталогу.
func WithComparators(table compare.Table) Option {
	return func(d *Detector) {
		d.evaluator = rule.New(table)
	}
}

// WithWorkers ограничивает число кандидатов, проверяемых одновременно.
func WithWorkers(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithTimeout ограничивает время одного вызова Detect вместе с чтением из хранилищ.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		d.timeout = timeout
	}
}

// WithRecorder подключает сбор метрик.
func WithRecorder(r Recorder) Option {
	return func(d *Detector) {
		d.recorder = r
	}
}

// New собирает Detector. По умолчанию используются compare.Default() и
// wp.MaxWorkersCount воркеров, таймаута нет.
func New(policies PolicyReader, candidates CandidateFinder, log *slog.Logger, opts ...Option) *Detector {
	d := &Detector{
		policies:   policies,
		candidates: candidates,
		evaluator:  rule.New(nil),
		log:        log,
		workers:    wp.MaxWorkersCount,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect сверяет subject с недавними заказами продавца. Результат никогда не
// бывает nil.
func (d *Detector) Detect(ctx context.Context, subject *models.OrderSnapshot) *models.DetectionResult {
	const fn = "detector.Detect"

	start := time.Now()

	result := &models.DetectionResult{DuplicateOrders: []models.DuplicateMatch{}}
	outcome := metrics.OutcomeDisabled
	compared := 0

	ctx, span := tracer.Start(ctx, fn)
	defer func() {
		result.ProcessingTime = time.Since(start)

		if d.recorder != nil {
			d.recorder.ObserveDetection(outcome, compared, result.ProcessingTime)
		}

		span.SetAttributes(
			attribute.String("outcome", outcome),
			attribute.Int("candidates", compared),
			attribute.Int("rules_checked", result.RulesChecked),
			attribute.Bool("is_duplicate", result.IsDuplicate),
		)
		span.End()
	}()

	if subject == nil {
		return result
	}

	span.SetAttributes(attribute.String("seller_id", subject.SellerID))

	log := d.log.With(
		slog.String("fn", fn),
		slog.String("seller_id", subject.SellerID),
		slog.String("order_id", subject.ID),
	)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	policy, err := d.policies.Policy(ctx, subject.SellerID)
	if err != nil {
		outcome = metrics.OutcomeFailed
		return degrade(result, span, log, "can't read detection policy", err)
	}

	if policy == nil || !policy.IsEnabled {
		log.Debug("duplicate detection is disabled for seller")
		return result
	}

	rules := activeRules(policy.Rules)
	if len(rules) == 0 {
		rules = []models.Rule{defaultRule(policy.DefaultTimeWindow)}
	}

	from, to := window.Bounds(subject.OrderDate, maxWindow(rules))

	candidates, err := d.candidates.FindCandidates(ctx, CandidateQuery{
		SellerID:       subject.SellerID,
		From:           from,
		To:             to,
		ExcludeOrderID: subject.ExcludeOrderID,
	})
	if err != nil {
		outcome = metrics.OutcomeFailed
		return degrade(result, span, log, "can't find candidate orders", err)
	}

	compared = len(candidates)

	matches, err := d.match(ctx, subject, rules, candidates)
	if err != nil {
		outcome = metrics.OutcomeFailed
		return degrade(result, span, log, "duplicate evaluation interrupted", err)
	}

	result.DuplicateOrders = matches
	result.IsDuplicate = len(matches) > 0
	result.RulesChecked = len(rules)

	outcome = metrics.OutcomeUnique
	if result.IsDuplicate {
		outcome = metrics.OutcomeDuplicate

		log.Info("possible duplicate order detected",
			slog.Int("matches", len(matches)),
			slog.String("first_rule", matches[0].MatchedRuleName),
		)
	}

	return result
}

// match проверяет кандидатов конкурентно. Каждый кандидат дает не больше одного
// совпадения по первому сработавшему правилу в порядке объявления. Порядок
// кандидатов в результате сохраняется.
func (d *Detector) match(
	ctx context.Context,
	subject *models.OrderSnapshot,
	rules []models.Rule,
	candidates []*models.OrderSnapshot,
) ([]models.DuplicateMatch, error) {
	found := make([]*models.DuplicateMatch, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i, candidate := range candidates {
		if skip(subject, candidate) {
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			delta := window.Delta(subject.OrderDate, candidate.OrderDate)

			for _, r := range rules {
				if d.evaluator.Evaluate(r, subject, candidate, delta) {
					found[i] = &models.DuplicateMatch{
						CandidateOrderID:     candidate.ID,
						CandidateOrderNumber: candidate.OrderNumber,
						MatchedRuleName:      r.Name,
					}
					return nil
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	matches := make([]models.DuplicateMatch, 0, len(found))
	for _, m := range found {
		if m != nil {
			matches = append(matches, *m)
		}
	}

	return matches, nil
}

func skip(subject, candidate *models.OrderSnapshot) bool {
	if candidate == nil {
		return true
	}
	if subject.ID != "" && candidate.ID == subject.ID {
		return true
	}

	return subject.ExcludeOrderID != "" && candidate.ID == subject.ExcludeOrderID
}

func degrade(
	result *models.DetectionResult,
	span trace.Span,
	log *slog.Logger,
	msg string,
	err error,
) *models.DetectionResult {
	log.Error(msg+", order treated as unique", sl.Err(err))

	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	result.IsDuplicate = false
	result.DuplicateOrders = []models.DuplicateMatch{}
	result.RulesChecked = 0
	result.Err = err

	return result
}

func activeRules(rules []models.Rule) []models.Rule {
	active := make([]models.Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}

	return active
}

func maxWindow(rules []models.Rule) time.Duration {
	windows := make([]models.TimeWindow, 0, len(rules))
	for _, r := range rules {
		windows = append(windows, r.TimeWindow)
	}

	return window.Max(windows...)
}

func defaultRule(tw models.TimeWindow) models.Rule {
	return models.Rule{
		Name:            DefaultRuleName,
		IsActive:        true,
		LogicalOperator: models.OperatorOr,
		TimeWindow:      tw,
		Conditions: []models.Condition{
			{Field: models.FieldCustomerName, Enabled: true},
			{Field: models.FieldCustomerPhone, Enabled: true},
		},
	}
}
