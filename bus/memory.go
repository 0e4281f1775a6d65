package bus

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/depthcam/ros"
)

// DefaultMemoryHistory is how many messages per topic a Memory publisher keeps.
const DefaultMemoryHistory = 16

// Memory keeps the most recent messages of each topic.
type Memory struct {
	history int

	mu       sync.Mutex
	closed   bool
	messages map[string][]ros.Message
	counts   map[string]int
}

// NewMemory returns a Memory keeping history messages per topic, or DefaultMemoryHistory if
// history is not positive.
func NewMemory(history int) *Memory {
	if history <= 0 {
		history = DefaultMemoryHistory
	}
	return &Memory{
		history:  history,
		messages: map[string][]ros.Message{},
		counts:   map[string]int{},
	}
}

// Publish implements Publisher.
func (m *Memory) Publish(ctx context.Context, topic string, msg ros.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("publisher closed")
	}
	msgs := append(m.messages[topic], msg)
	if len(msgs) > m.history {
		msgs = msgs[len(msgs)-m.history:]
	}
	m.messages[topic] = msgs
	m.counts[topic]++
	return nil
}

// Close implements Publisher.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Messages returns the kept messages of a topic, oldest first.
func (m *Memory) Messages(topic string) []ros.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ros.Message(nil), m.messages[topic]...)
}

// Last returns the newest message of a topic, or nil.
func (m *Memory) Last(topic string) ros.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[topic]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// Count returns how many messages were ever published on a topic.
func (m *Memory) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[topic]
}

// Topics returns the topics published so far, sorted.
func (m *Memory) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := lo.Keys(m.counts)
	sort.Strings(topics)
	return topics
}
