package broker

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// Kafka publishes through a synchronous kafka.Writer. Messages are
// partitioned by key.
type Kafka struct {
	brokers []string
	writer  *kafka.Writer
}

// NewKafka creates a Kafka bus. No connection is made until the first
// Publish or Ping.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	return &Kafka{
		brokers: cfg.Brokers,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
			BatchTimeout:           cfg.BatchTimeout,
			Compression:            codec,
			MaxAttempts:            1,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

func compressionCodec(name string) (kafka.Compression, error) {
	switch name {
	case "", "none":
		return kafka.Compression(0), nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, errors.Errorf("unknown compression %q", name)
	}
}

func (k *Kafka) Publish(ctx context.Context, topic string, msg Message) error {
	m := kafka.Message{
		Topic: topic,
		Key:   msg.Key,
		Value: msg.Value,
	}
	for key, v := range msg.Headers {
		m.Headers = append(m.Headers, kafka.Header{Key: key, Value: []byte(v)})
	}

	if err := k.writer.WriteMessages(ctx, m); err != nil {
		return errors.Wrap(err, "kafka write")
	}
	return nil
}

// Ping dials the first reachable broker.
func (k *Kafka) Ping(ctx context.Context) error {
	var lastErr error
	for _, addr := range k.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return errors.Wrap(lastErr, "kafka dial")
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
