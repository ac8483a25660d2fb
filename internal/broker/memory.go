package broker

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/go-faster/errors"
)

// ErrClosed is returned when publishing to a closed Memory bus.
var ErrClosed = errors.New("bus closed")

// Memory keeps published messages in process. It backs local development
// and tests.
type Memory struct {
	mu     sync.Mutex
	topics map[string][]Message
	closed bool
}

func NewMemory() *Memory {
	return &Memory{topics: make(map[string][]Message)}
}

func (m *Memory) Publish(ctx context.Context, topic string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	msg.Key = slices.Clone(msg.Key)
	msg.Value = slices.Clone(msg.Value)
	msg.Headers = maps.Clone(msg.Headers)
	m.topics[topic] = append(m.topics[topic], msg)
	return nil
}

// Messages returns a copy of everything published to topic, oldest first.
func (m *Memory) Messages(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.topics[topic])
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
