package broker

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATS publishes core NATS messages with the topic as subject.
type NATS struct {
	conn *nats.Conn
}

// NewNATS connects to the NATS server. An unreachable server is not an
// error: the client keeps reconnecting in the background.
func NewNATS(cfg NATSConfig, lg *zap.Logger) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("order-service"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				lg.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			lg.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	return &NATS{conn: conn}, nil
}

// Publish sends msg and waits for the server to acknowledge the flush, so a
// disconnected client reports failure instead of buffering silently.
func (n *NATS) Publish(ctx context.Context, topic string, msg Message) error {
	m := nats.NewMsg(topic)
	m.Data = msg.Value
	if len(msg.Key) > 0 {
		m.Header.Set("key", string(msg.Key))
	}
	for k, v := range msg.Headers {
		m.Header.Set(k, v)
	}

	if err := n.conn.PublishMsg(m); err != nil {
		return errors.Wrap(err, "nats publish")
	}
	if err := n.flush(ctx); err != nil {
		return errors.Wrap(err, "nats flush")
	}
	return nil
}

// flush waits for the server to process buffered messages. Without a
// deadline on ctx the client's default flush timeout applies.
func (n *NATS) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return n.conn.Flush()
	}
	return n.conn.FlushWithContext(ctx)
}

func (n *NATS) Ping(ctx context.Context) error {
	if !n.conn.IsConnected() {
		return errors.Errorf("nats not connected: %s", n.conn.Status())
	}
	return n.flush(ctx)
}

func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
