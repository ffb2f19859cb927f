// package main - точка входа сервиса обнаружения дублей заказов.
// Сервис читает новые заказы из Kafka, проверяет их детектором, сохраняет
// в PostgreSQL и публикует найденные дубли в отдельный топик. Параллельно
// поднимается HTTP API для ручной проверки заказов и настройки политик.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/YusovID/order-dedup/internal/config"
	"github.com/YusovID/order-dedup/internal/detector"
	httpserver "github.com/YusovID/order-dedup/internal/http-server"
	"github.com/YusovID/order-dedup/internal/metrics"
	processor "github.com/YusovID/order-dedup/internal/processor/order"
	"github.com/YusovID/order-dedup/internal/storage/kafka"
	"github.com/YusovID/order-dedup/internal/storage/postgres"
	"github.com/YusovID/order-dedup/internal/storage/redis"
	"github.com/YusovID/order-dedup/lib/logger/sl"
	"github.com/YusovID/order-dedup/lib/logger/slogpretty"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	wg := &sync.WaitGroup{}

	cfg := config.MustLoad()

	log := slogpretty.SetupLogger(cfg.Env)

	log.Info("starting order dedup service", slog.String("env", cfg.Env))

	storage, err := postgres.New(cfg.Postgres, log)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	log.Info("storage init successful")

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to init cache", sl.Err(err))
		os.Exit(1)
	}
	defer redisClient.Close()

	cache := redis.NewPolicyCache(redisClient, storage, cfg.Redis.PolicyTTL, log)

	log.Info("cache init successful")

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		log.Error("failed to register metrics", sl.Err(err))
		os.Exit(1)
	}

	det := detector.New(cache, storage, log,
		detector.WithWorkers(cfg.Detector.Workers),
		detector.WithTimeout(cfg.Detector.Timeout),
		detector.WithRecorder(m),
	)

	// отдельный transactional.id, чтобы не конфликтовать с генератором
	producerCfg := cfg.Kafka
	if producerCfg.Producer.TransactionalId != "" {
		producerCfg.Producer.TransactionalId += "-results"
	}

	producer, err := kafka.NewProducer(producerCfg, log)
	if err != nil {
		log.Error("failed to init producer", sl.Err(err))
		os.Exit(1)
	}

	log.Info("producer init successful")

	orderChan := make(chan *sarama.ConsumerMessage)
	commitChan := make(chan *sarama.ConsumerMessage)

	consumer, err := kafka.NewConsumer(cfg.Kafka, orderChan, commitChan, log)
	if err != nil {
		log.Error("failed to init consumer", sl.Err(err))
		os.Exit(1)
	}

	log.Info("consumer init successful")

	proc := processor.New(
		storage,
		det,
		producer,
		cfg.Kafka.ResultsTopic,
		cfg.Detector.Workers,
		orderChan,
		commitChan,
		log,
	)

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)

	wg.Add(3)
	go consumer.ProcessMessages(ctx, cfg.Kafka.Topic, wg)
	go proc.ProcessOrders(ctx, wg)
	go producer.HandleResult(ctx, wg)

	log.Info("listening messages", slog.String("topic", cfg.Kafka.Topic))

	server := httpserver.NewServer(cfg.HTTPServer, httpserver.NewRouter(log, httpserver.Deps{
		Detector: det,
		Orders:   storage,
		Policies: storage,
		Cache:    cache,
		Gatherer: prometheus.DefaultGatherer,
	}))

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", sl.Err(err))
			sigchan <- syscall.SIGTERM
		}
	}()

	log.Info("server started", slog.String("address", cfg.HTTPServer.Address))

	<-sigchan
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", sl.Err(err))
	}

	wg.Wait()

	log.Info("shutting down consumer")
	if err := consumer.Consumer.Close(); err != nil {
		log.Error("failed to close consumer", sl.Err(err))
	}

	log.Info("shutting down producer")
	if err := producer.Producer.Close(); err != nil {
		log.Error("failed to close producer", sl.Err(err))
	}
}
