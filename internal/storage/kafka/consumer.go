package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/YusovID/order-dedup/internal/config"
	"github.com/YusovID/order-dedup/lib/logger/sl"
)

const (
	batchsize      = 100
	commitInterval = 5 * time.Second
)

type Consumer struct {
	Consumer   sarama.ConsumerGroup
	orderChan  chan<- *sarama.ConsumerMessage
	commitChan <-chan *sarama.ConsumerMessage
	log        *slog.Logger
}

func NewConsumer(
	cfg config.Kafka,
	orderChan chan<- *sarama.ConsumerMessage,
	commitChan <-chan *sarama.ConsumerMessage,
	log *slog.Logger,
) (*Consumer, error) {
	config := sarama.NewConfig()

	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = initialOffset(cfg.Consumer.AutoOffsetReset)
	config.Consumer.IsolationLevel = sarama.ReadCommitted
	config.Consumer.Offsets.AutoCommit.Enable = false

	cg, err := sarama.NewConsumerGroup(cfg.BootstrapServers, cfg.Consumer.GroupId, config)
	if err != nil {
		return nil, fmt.Errorf("can't create consumer: %v", err)
	}

	return &Consumer{
		Consumer:   cg,
		orderChan:  orderChan,
		commitChan: commitChan,
		log:        log,
	}, nil
}

func initialOffset(reset string) int64 {
	if reset == "latest" {
		return sarama.OffsetNewest
	}

	return sarama.OffsetOldest
}

func (c *Consumer) ProcessMessages(ctx context.Context, topic string, wg *sync.WaitGroup) {
	defer wg.Done()

	const fn = "storage.kafka.ProcessMessages"

	log := c.log.With("fn", fn)

	handler := &consumerHandler{
		orderChan:  c.orderChan,
		commitChan: c.commitChan,
		log:        log,
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping message processing")
			return

		default:
			err := c.Consumer.Consume(ctx, []string{topic}, handler)
			if err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					log.Info("consumer group closed, exiting process messages loop")
					return
				}
				log.Error("error from consumer", sl.Err(err))
			}
		}
	}
}

// consumerHandler передает сообщения обработчику и отмечает те, что вернулись
// через commitChan. Смещения коммитятся каждые batchsize отметок, раз в
// commitInterval и при завершении сессии.
type consumerHandler struct {
	orderChan  chan<- *sarama.ConsumerMessage
	commitChan <-chan *sarama.ConsumerMessage
	log        *slog.Logger
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	processed := 0

	ticker := time.NewTicker(commitInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			h.log.Debug(
				"received message",
				slog.Int("partition", int(msg.Partition)),
				slog.Int64("offset", msg.Offset),
			)

			if !h.forward(session, msg, &processed) {
				session.Commit()
				return nil
			}

		case msg := <-h.commitChan:
			h.mark(session, msg, &processed)

		case <-ticker.C:
			if processed > 0 {
				session.Commit()
				processed = 0
			}

		case <-session.Context().Done():
			session.Commit()

			return nil
		}
	}
}

// forward ждет, пока обработчик примет сообщение. Пока ждем, продолжаем
// разбирать commitChan: иначе обработчик, который сам блокируется на отправке
// в commitChan, никогда не заберет следующее сообщение. Возвращает false,
// если сессия завершилась раньше.
func (h *consumerHandler) forward(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage, processed *int) bool {
	for {
		select {
		case h.orderChan <- msg:
			return true

		case done := <-h.commitChan:
			h.mark(session, done, processed)

		case <-session.Context().Done():
			return false
		}
	}
}

func (h *consumerHandler) mark(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage, processed *int) {
	session.MarkMessage(msg, "")

	*processed++

	if *processed >= batchsize {
		h.log.Info("committing messages")
		session.Commit()
		*processed = 0
	}
}
