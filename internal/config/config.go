// Package config определяет структуры для конфигурации всего приложения
// и предоставляет функции для их загрузки из YAML-файла и переменных окружения.
// Используется библиотека cleanenv: значения из файла можно переопределить
// через environment variables, что удобно при запуске в Docker-контейнерах.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config - корневая структура, объединяющая все параметры приложения.
type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-required:"true"`
	Postgres   Postgres   `yaml:"postgres" env-required:"true"`
	Redis      Redis      `yaml:"redis" env-required:"true"`
	Kafka      Kafka      `yaml:"kafka" env-required:"true"`
	HTTPServer HTTPServer `yaml:"http_server" env-required:"true"`
	Detector   Detector   `yaml:"detector"`
	Generator  Generator  `yaml:"generator"`
}

// Postgres содержит параметры для подключения к базе данных PostgreSQL.
type Postgres struct {
	Username string `yaml:"username" env:"POSTGRES_USER" env-required:"true"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-required:"true"`
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-required:"true"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-required:"true"`
	Database string `yaml:"database" env:"POSTGRES_DB" env-required:"true"`
}

// ConnString собирает строку подключения к PostgreSQL.
func (p Postgres) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		p.Username,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
	)
}

// Redis содержит параметры подключения к Redis, который используется
// как кэш политик обнаружения дублей.
type Redis struct {
	Host      string        `yaml:"host" env:"REDIS_HOST" env-required:"true"`
	Port      string        `yaml:"port" env:"REDIS_PORT" env-required:"true"`
	DB        int           `yaml:"db" env:"REDIS_DB"`
	Password  string        `yaml:"password" env:"REDIS_PASSWORD"`
	PolicyTTL time.Duration `yaml:"policy_ttl" env:"REDIS_POLICY_TTL" env-default:"5m"`
}

// Kafka содержит параметры для взаимодействия с Apache Kafka.
// Из топика Topic читаются новые заказы, в ResultsTopic публикуются
// найденные дубли.
type Kafka struct {
	BootstrapServers []string `yaml:"bootstrap.servers" env:"KAFKA_BOOTSTRAP_SERVERS" env-required:"true"`
	Topic            string   `yaml:"topic" env-required:"true"`
	ResultsTopic     string   `yaml:"results_topic" env-default:"order-duplicates"`
	Producer         Producer `yaml:"producer" env-required:"true"`
	Consumer         Consumer `yaml:"consumer" env-required:"true"`
}

// Producer определяет настройки для Kafka-продюсера.
type Producer struct {
	Acks              int    `yaml:"acks" env-required:"true"`
	EnableIdempotence bool   `yaml:"enable.idempotence"`
	Retries           int    `yaml:"retries"`
	TransactionalId   string `yaml:"transactional.id"`
}

// Consumer определяет настройки для Kafka-консьюмера.
type Consumer struct {
	GroupId          string `yaml:"group.id" env-required:"true"`
	AutoOffsetReset  string `yaml:"auto.offset.reset" env-required:"true"`
	EnableAutoCommit bool   `yaml:"enable.auto.commit"`
	SecurityProtocol string `yaml:"security.protocol"`
	IsolationLevel   int8   `yaml:"isolation.level"`
}

// HTTPServer содержит параметры для запуска встроенного HTTP-сервера.
type HTTPServer struct {
	Address     string        `yaml:"address" env-required:"true"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Detector задает параметры детектора дублей.
//   - Workers: сколько кандидатов проверяется параллельно;
//   - Timeout: ограничение на один вызов детектора, включая чтение из хранилищ.
type Detector struct {
	Workers int           `yaml:"workers" env:"DETECTOR_WORKERS" env-default:"10"`
	Timeout time.Duration `yaml:"timeout" env:"DETECTOR_TIMEOUT" env-default:"2s"`
}

// Generator задает параметры сервиса-генератора заказов.
// DuplicateRate - доля почти-дублей в генерируемом потоке (от 0 до 1).
type Generator struct {
	DuplicateRate float64 `yaml:"duplicate_rate" env:"GENERATOR_DUPLICATE_RATE" env-default:"0.2"`
}

// MustLoad читает конфигурацию из файла, путь к которому указан в переменной
// окружения CONFIG_PATH, и из переменных окружения.
//
// Префикс "Must" означает, что при любой ошибке приложение завершится
// через log.Fatalf: без валидной конфигурации работа сервиса невозможна.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return cfg
}

// Load читает конфигурацию из файла configPath и переменных окружения.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("can't read config: %w", err)
	}

	return &cfg, nil
}
