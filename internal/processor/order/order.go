// Package processor реализует конвейер приема заказов из Kafka:
// декодирование, валидация, проверка на дубли, сохранение и публикация
// найденных дублей. Сообщение подтверждается (commit) только после того,
// как заказ сохранен или признан непригодным для обработки.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-playground/validator/v10"

	"github.com/YusovID/order-dedup/internal/models"
	"github.com/YusovID/order-dedup/internal/storage"
	"github.com/YusovID/order-dedup/lib/logger/sl"
	wp "github.com/YusovID/order-dedup/lib/workerpool"
)

// flushInterval ограничивает время, которое неполная пачка ждет обработки.
const flushInterval = 500 * time.Millisecond

type Storage interface {
	SaveOrder(ctx context.Context, order *models.OrderSnapshot) error
}

type Detector interface {
	Detect(ctx context.Context, subject *models.OrderSnapshot) *models.DetectionResult
}

type Publisher interface {
	PublishDetection(topic string, event *models.DetectionEvent) error
}

type IPool interface {
	Create()
	Handle(context.Context, *sarama.ConsumerMessage) error
	Wait()
}

type Processor struct {
	Storage      Storage
	detector     Detector
	publisher    Publisher
	resultsTopic string
	workers      int
	orderChan    <-chan *sarama.ConsumerMessage
	commitChan   chan<- *sarama.ConsumerMessage
	validate     *validator.Validate
	log          *slog.Logger
	now          func() time.Time
}

func New(
	storage Storage,
	detector Detector,
	publisher Publisher,
	resultsTopic string,
	workers int,
	orderChan <-chan *sarama.ConsumerMessage,
	commitChan chan<- *sarama.ConsumerMessage,
	log *slog.Logger,
) *Processor {
	if workers <= 0 {
		workers = wp.MaxWorkersCount
	}

	return &Processor{
		Storage:      storage,
		detector:     detector,
		publisher:    publisher,
		resultsTopic: resultsTopic,
		workers:      workers,
		orderChan:    orderChan,
		commitChan:   commitChan,
		validate:     validator.New(),
		log:          log,
		now:          time.Now,
	}
}

// ProcessOrders собирает сообщения в пачки размером с пул и обрабатывает их.
// Неполная пачка обрабатывается по таймеру. Необработанные при остановке
// сообщения не подтверждаются и будут получены повторно.
func (p *Processor) ProcessOrders(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	const fn = "processor.order.ProcessOrders"
	log := p.log.With("fn", fn)

	orders := make([]*sarama.ConsumerMessage, 0, p.workers)

	pool := wp.New(p.workers, p.processOrder)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping processing orders by context", slog.Int("pending", len(orders)))
			return

		case order := <-p.orderChan:
			orders = append(orders, order)

			if len(orders) == p.workers {
				p.processBatch(ctx, orders, pool)

				orders = make([]*sarama.ConsumerMessage, 0, p.workers)
			}

		case <-ticker.C:
			if len(orders) != 0 {
				p.processBatch(ctx, orders, pool)

				orders = make([]*sarama.ConsumerMessage, 0, p.workers)
			}
		}
	}
}

func (p *Processor) processBatch(ctx context.Context, orders []*sarama.ConsumerMessage, pool IPool) {
	pool.Create()

	wg := &sync.WaitGroup{}

	for _, order := range orders {
		wg.Add(1)

		go func(currentOrder *sarama.ConsumerMessage) {
			defer wg.Done()

			if err := pool.Handle(ctx, currentOrder); err != nil {
				p.log.Error("failed to handle order message",
					slog.Int64("offset", currentOrder.Offset),
					sl.Err(err),
				)

				return
			}

			select {
			case p.commitChan <- currentOrder:
			case <-ctx.Done():
			}
		}(order)
	}

	wg.Wait()
	pool.Wait()
}

// processOrder возвращает ошибку только для сбоев, после которых сообщение
// стоит получить повторно. Битые и невалидные заказы подтверждаются.
func (p *Processor) processOrder(ctx context.Context, msg *sarama.ConsumerMessage) error {
	const fn = "processor.order.processOrder"

	log := p.log.With(
		slog.String("fn", fn),
		slog.Int("partition", int(msg.Partition)),
		slog.Int64("offset", msg.Offset),
	)

	var order models.OrderSnapshot
	if err := json.Unmarshal(msg.Value, &order); err != nil {
		log.Error("can't unmarshal order, skipping", sl.Err(err))
		return nil
	}

	log = log.With(slog.String("order_id", order.ID), slog.String("seller_id", order.SellerID))

	if err := p.validate.Struct(order); err != nil {
		log.Error("invalid order, skipping", sl.Err(err))
		return nil
	}

	result := p.detector.Detect(ctx, &order)

	if err := p.Storage.SaveOrder(ctx, &order); err != nil {
		if errors.Is(err, storage.ErrOrderExists) {
			log.Info("order already saved")
			return nil
		}

		return fmt.Errorf("%s: failed to save order: %w", fn, err)
	}

	if !result.IsDuplicate {
		log.Debug("order is unique", slog.Int("rules_checked", result.RulesChecked))
		return nil
	}

	log.Info("duplicate order detected", slog.Int("matches", len(result.DuplicateOrders)))

	event := &models.DetectionEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		SellerID:    order.SellerID,
		Result:      result,
		DetectedAt:  p.now().UTC(),
	}

	// заказ уже сохранен, поэтому ошибка публикации не повод для повтора
	if err := p.publisher.PublishDetection(p.resultsTopic, event); err != nil {
		log.Error("failed to publish detection event", sl.Err(err))
	}

	return nil
}
