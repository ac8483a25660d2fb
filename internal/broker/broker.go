// Package broker delivers messages to the configured message broker.
package broker

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Message is a single broker message. Key selects the partition on brokers
// that support it.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Bus publishes messages to named topics.
type Bus interface {
	// Publish hands msg to the broker once. It does not retry.
	Publish(ctx context.Context, topic string, msg Message) error
	Close() error
}

// Supported drivers.
const (
	DriverMemory = "memory"
	DriverKafka  = "kafka"
	DriverNATS   = "nats"
	DriverRedis  = "redis"
)

// Config selects and configures the broker driver.
type Config struct {
	Driver         string        `default:"kafka" usage:"Broker driver: memory, kafka, nats or redis"`
	PublishTimeout time.Duration `usage:"Extra bound on handing one event to the broker, 0 leaves it to the driver"`
	Kafka          KafkaConfig
	NATS           NATSConfig
	Redis          RedisConfig
}

// KafkaConfig configures the Kafka driver.
type KafkaConfig struct {
	Brokers      []string      `default:"localhost:9092" usage:"Kafka bootstrap brokers (host:port)"`
	RequiredAcks int           `default:"-1" usage:"Required acks: 0, 1 or -1 (all)"`
	BatchTimeout time.Duration `default:"10ms" usage:"Producer batch flush interval"`
	Compression  string        `default:"none" usage:"none, gzip, snappy, lz4 or zstd"`
}

// NATSConfig configures the NATS driver.
type NATSConfig struct {
	URL           string        `default:"nats://localhost:4222" usage:"NATS server URL"`
	ReconnectWait time.Duration `default:"2s" usage:"Wait between reconnect attempts"`
	MaxReconnects int           `default:"-1" usage:"Maximum reconnect attempts, -1 for unlimited"`
}

// RedisConfig configures the Redis Streams driver.
type RedisConfig struct {
	Addr         string `default:"localhost:6379" usage:"Redis address"`
	Password     string `usage:"Redis password"`
	DB           int    `default:"0" usage:"Redis database"`
	StreamMaxLen int64  `default:"10000" usage:"Approximate stream length cap, 0 disables trimming"`
}

// Validate checks the section of the config used by the selected driver.
func (c Config) Validate() error {
	if c.PublishTimeout < 0 {
		return errors.New("publish timeout cannot be negative")
	}

	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverKafka:
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka: brokers cannot be empty")
		}
		for i, b := range c.Kafka.Brokers {
			if !strings.Contains(b, ":") {
				return errors.Errorf("kafka: broker[%d] %q must be host:port", i, b)
			}
		}
		switch c.Kafka.RequiredAcks {
		case -1, 0, 1:
		default:
			return errors.Errorf("kafka: invalid required acks %d", c.Kafka.RequiredAcks)
		}
		if _, err := compressionCodec(c.Kafka.Compression); err != nil {
			return errors.Wrap(err, "kafka")
		}
		return nil
	case DriverNATS:
		if c.NATS.URL == "" {
			return errors.New("nats: url cannot be empty")
		}
		return nil
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis: addr cannot be empty")
		}
		if c.Redis.StreamMaxLen < 0 {
			return errors.New("redis: stream max len cannot be negative")
		}
		return nil
	default:
		return errors.Errorf("unknown broker driver %q", c.Driver)
	}
}

// Open creates the configured Bus. Only an invalid config is an error: when
// the broker cannot be reached the failure is logged and the returned Bus
// keeps trying, so publishing fails until the broker is back.
func Open(ctx context.Context, lg *zap.Logger, cfg Config) (Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid broker config")
	}
	lg = lg.With(zap.String("driver", cfg.Driver))

	var (
		bus Bus
		err error
	)
	switch cfg.Driver {
	case DriverKafka:
		bus, err = NewKafka(cfg.Kafka)
	case DriverNATS:
		bus, err = NewNATS(cfg.NATS, lg)
	case DriverRedis:
		bus, err = NewRedis(cfg.Redis)
	default:
		bus = NewMemory()
	}
	if err != nil {
		return nil, errors.Wrap(err, "create broker")
	}

	if p, ok := bus.(pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			lg.Warn("Broker unreachable, order events will fail until it recovers", zap.Error(err))
			return bus, nil
		}
	}
	lg.Info("Broker connected")

	return bus, nil
}

const pingTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}
