package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/YusovID/order-dedup/internal/config"
	"github.com/YusovID/order-dedup/internal/models"
	orderGen "github.com/YusovID/order-dedup/lib/generator/order"
	"github.com/YusovID/order-dedup/lib/logger/sl"
)

const (
	MaxTimeToSleep = 3
)

type Producer struct {
	Producer sarama.AsyncProducer
	Log      *slog.Logger

	// транзакции идут строго по одной
	mu sync.Mutex
}

func NewProducer(cfg config.Kafka, log *slog.Logger) (*Producer, error) {
	config := sarama.NewConfig()

	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Producer.Acks)
	config.Producer.Idempotent = cfg.Producer.EnableIdempotence
	config.Net.MaxOpenRequests = 1
	config.Producer.Retry.Max = cfg.Producer.Retries
	config.Producer.Transaction.ID = cfg.Producer.TransactionalId

	p, err := sarama.NewAsyncProducer(cfg.BootstrapServers, config)
	if err != nil {
		return nil, fmt.Errorf("can't create producer: %v", err)
	}

	return NewProducerFrom(p, log), nil
}

// NewProducerFrom оборачивает уже настроенного продюсера.
func NewProducerFrom(p sarama.AsyncProducer, log *slog.Logger) *Producer {
	return &Producer{
		Producer: p,
		Log:      log,
	}
}

// PublishDetection отправляет событие в topic с ключом - ID продавца. У
// транзакционного продюсера каждое событие коммитится своей транзакцией.
func (p *Producer) PublishDetection(topic string, event *models.DetectionEvent) error {
	const fn = "storage.kafka.PublishDetection"

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: can't marshal event: %w", fn, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.SellerID),
		Value: sarama.ByteEncoder(value),
	}

	if !p.Producer.IsTransactional() {
		p.Producer.Input() <- msg
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.Producer.BeginTxn(); err != nil {
		return fmt.Errorf("%s: can't begin transaction: %w", fn, err)
	}

	p.Producer.Input() <- msg

	if err := p.Producer.CommitTxn(); err != nil {
		if abortErr := p.Producer.AbortTxn(); abortErr != nil {
			p.Log.Error("can't abort transaction", sl.Err(abortErr))
		}

		return fmt.Errorf("%s: can't commit transaction: %w", fn, err)
	}

	return nil
}

// ProduceMessage отправляет сгенерированные заказы в topic до завершения ctx.
// Сообщения объединяются в одну транзакцию в секунду.
func (p *Producer) ProduceMessage(ctx context.Context, topic string, gen *orderGen.Generator, wg *sync.WaitGroup) {
	defer wg.Done()

	transactional := p.Producer.IsTransactional()

	if transactional {
		if err := p.Producer.BeginTxn(); err != nil {
			p.Log.Error("can't begin transaction", sl.Err(err))
			return
		}
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if transactional {
				p.commit()
			}

			return

		case <-ticker.C:
			if !transactional {
				continue
			}

			p.commit()

			if err := p.Producer.BeginTxn(); err != nil {
				p.Log.Error("can't begin transaction", sl.Err(err))

				time.Sleep(100 * time.Millisecond)
				continue
			}
		default:
			key, order, err := gen.GenerateOrder()
			if err != nil {
				p.Log.Error("can't generate order", sl.Err(err))
				continue
			}

			p.PushMessageToQueue(topic, key, order)

			timeToSleep := rand.IntN(MaxTimeToSleep + 1)

			time.Sleep(time.Duration(timeToSleep) * time.Second)
		}
	}
}

func (p *Producer) commit() {
	if err := p.Producer.CommitTxn(); err != nil {
		if abortErr := p.Producer.AbortTxn(); abortErr != nil {
			p.Log.Error("can't abort transaction", sl.Err(abortErr))
		}

		p.Log.Error("can't commit transaction", sl.Err(err))
	}
}

func (p *Producer) PushMessageToQueue(topic, key string, message []byte) {
	p.Producer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(message),
	}
}

func (p *Producer) HandleResult(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	go func() {
		for success := range p.Producer.Successes() {
			p.Log.Info("message sent successfully",
				slog.String("topic", success.Topic),
				slog.Int("partition", int(success.Partition)),
				slog.Int64("offset", success.Offset),
			)
		}
	}()

	go func() {
		for err := range p.Producer.Errors() {
			p.Log.Error("failed to send message", sl.Err(err))
		}
	}()

	<-ctx.Done()
}
