package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"

	RelayNone     = "none"
	RelayKafka    = "kafka"
	RelayRabbitMQ = "rabbitmq"
)

// Config aggregates application settings loaded from the environment.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"memory"`
	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDB       string `envconfig:"MONGO_DB" default:"courtbook"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`

	// CatalogFixtures seeds courts and vouchers from a JSON file when set.
	CatalogFixtures string `envconfig:"CATALOG_FIXTURES"`

	OutboxRelay        string          `envconfig:"OUTBOX_RELAY" default:"none"`
	OutboxPollInterval time.Duration   `envconfig:"OUTBOX_POLL_INTERVAL" default:"500ms"`
	RetryBackoff       []time.Duration `envconfig:"RETRY_BACKOFF" default:"1s,5s,30s"`
	IdempotencyTTL     time.Duration   `envconfig:"IDEMP_TTL" default:"168h"`

	// PaymentSource selects the broker payment outcomes are consumed from.
	PaymentSource string `envconfig:"PAYMENT_SOURCE" default:"none"`

	KafkaBrokers      []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopicPrefix  string   `envconfig:"KAFKA_TOPIC_PREFIX"`
	KafkaPaymentTopic string   `envconfig:"KAFKA_PAYMENT_TOPIC" default:"payment.events.v1"`
	KafkaGroupID      string   `envconfig:"KAFKA_GROUP_ID" default:"courtbook-payments"`

	RabbitURL       string `envconfig:"RABBIT_URL"`
	PaymentExchange string `envconfig:"PAYMENT_EXCHANGE" default:"payment.exchange"`
	PaymentQueue    string `envconfig:"PAYMENT_QUEUE" default:"courtbook.payment.q"`
	BookingExchange string `envconfig:"BOOKING_EXCHANGE" default:"booking.exchange"`

	JWTSecret string `envconfig:"JWT_SECRET"`

	GraceWindow       time.Duration `envconfig:"PENDING_GRACE_WINDOW" default:"15m"`
	SweepInterval     time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`
	KeepAliveInterval time.Duration `envconfig:"KEEPALIVE_INTERVAL" default:"20s"`
	SubscriberBuffer  int           `envconfig:"SUBSCRIBER_BUFFER" default:"16"`

	ServiceFee     int64  `envconfig:"SERVICE_FEE" default:"5000"`
	ProtectionCost int64  `envconfig:"PROTECTION_COST" default:"10000"`
	InvoicePrefix  string `envconfig:"INVOICE_PREFIX" default:"INV"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"courtbook"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		// A missing file is fine; variables already set win over the file.
		_ = godotenv.Load(file)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.OutboxRelay = strings.ToLower(strings.TrimSpace(cfg.OutboxRelay))
	cfg.PaymentSource = strings.ToLower(strings.TrimSpace(cfg.PaymentSource))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	switch c.OutboxRelay {
	case RelayNone:
	case RelayKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka relay"))
		}
	case RelayRabbitMQ:
		if c.RabbitURL == "" {
			errs = append(errs, errors.New("RABBIT_URL is required for the rabbitmq relay"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown OUTBOX_RELAY %q", c.OutboxRelay))
	}
	switch c.PaymentSource {
	case RelayNone:
	case RelayKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required to consume payment outcomes"))
		}
	case RelayRabbitMQ:
		if c.RabbitURL == "" {
			errs = append(errs, errors.New("RABBIT_URL is required to consume payment outcomes"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_SOURCE %q", c.PaymentSource))
	}
	if c.JWTSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if c.GraceWindow <= 0 {
		errs = append(errs, errors.New("PENDING_GRACE_WINDOW must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.ServiceFee < 0 || c.ProtectionCost < 0 {
		errs = append(errs, errors.New("SERVICE_FEE and PROTECTION_COST cannot be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	}
	return false
}
