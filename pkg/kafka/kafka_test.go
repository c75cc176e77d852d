package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/config"
)

func TestDecodeJSON(t *testing.T) {
	type event struct {
		BuildID string `json:"build_id"`
	}
	got, err := DecodeJSON[event]([]byte(`{"build_id":"b1"}`))
	require.NoError(t, err)
	assert.Equal(t, "b1", got.BuildID)

	_, err = DecodeJSON[event]([]byte(`{`))
	assert.Error(t, err)
}

func TestConsumerOptions(t *testing.T) {
	s := consumerSettings{reader: kafka.ReaderConfig{StartOffset: kafka.LastOffset, GroupID: "a"}, commit: true}
	FromBeginning()(&s)
	WithGroup("b")(&s)
	assert.Equal(t, kafka.FirstOffset, s.reader.StartOffset)
	assert.Equal(t, "b", s.reader.GroupID)
	assert.True(t, s.commit)

	Replay("catalog-indexer")(&s)
	assert.Equal(t, kafka.FirstOffset, s.reader.StartOffset)
	assert.Contains(t, s.reader.GroupID, "catalog-indexer-")
	assert.False(t, s.commit)
}

// memoryTopic is a single-partition topic that tracks committed offsets per
// group the way a broker does: a group with a committed offset resumes there
// and StartOffset only applies to groups it has never seen.
type memoryTopic struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed map[string]int64
}

func newMemoryTopic(values ...string) *memoryTopic {
	topic := &memoryTopic{committed: make(map[string]int64)}
	topic.append(values...)
	return topic
}

func (m *memoryTopic) append(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.messages = append(m.messages, kafka.Message{Offset: int64(len(m.messages)), Value: []byte(v)})
	}
}

func (m *memoryTopic) open(rc kafka.ReaderConfig) messageReader {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := m.committed[rc.GroupID]
	if !ok {
		next = int64(len(m.messages))
		if rc.StartOffset == kafka.FirstOffset {
			next = 0
		}
	}
	return &memoryReader{topic: m, group: rc.GroupID, next: next}
}

type memoryReader struct {
	topic *memoryTopic
	group string
	next  int64
}

func (r *memoryReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.topic.mu.Lock()
	if r.next < int64(len(r.topic.messages)) {
		msg := r.topic.messages[r.next]
		r.next++
		r.topic.mu.Unlock()
		return msg, nil
	}
	r.topic.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *memoryReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.topic.mu.Lock()
	defer r.topic.mu.Unlock()
	for _, msg := range msgs {
		r.topic.committed[r.group] = msg.Offset + 1
	}
	return nil
}

func (r *memoryReader) Close() error { return nil }

// streamCorpus reads topic the way the indexer command does.
func streamCorpus(t *testing.T, topic *memoryTopic, opts ...ConsumerOption) *corpus.Corpus {
	t.Helper()
	subscribe := func(ctx context.Context, handle func(context.Context, []byte) error) error {
		c := newConsumer(config.KafkaConfig{ConsumerGroup: "catalog"}, "catalog.documents",
			func(ctx context.Context, _ []byte, value []byte) error { return handle(ctx, value) },
			topic.open, opts...)
		return c.Start(ctx)
	}
	c, err := corpus.Stream(context.Background(), subscribe, 50*time.Millisecond)
	require.NoError(t, err)
	return c
}

func TestReplayReadsWholeTopicOnEveryRun(t *testing.T) {
	topic := newMemoryTopic(`{"a": "alpha"}`, `{"b": "beta"}`)

	first := streamCorpus(t, topic, Replay("catalog-indexer"))
	second := streamCorpus(t, topic, Replay("catalog-indexer"))
	assert.Equal(t, []string{"a", "b"}, first.Keys())
	assert.Equal(t, []string{"a", "b"}, second.Keys())

	topic.append(`{"c": "gamma"}`)
	third := streamCorpus(t, topic, Replay("catalog-indexer"))
	assert.Equal(t, []string{"a", "b", "c"}, third.Keys())
	assert.Empty(t, topic.committed)
}

func TestCommittingGroupResumesWhereItStopped(t *testing.T) {
	topic := newMemoryTopic(`{"a": "alpha"}`, `{"b": "beta"}`)
	opts := []ConsumerOption{FromBeginning(), WithGroup("catalog-indexer")}

	assert.Equal(t, []string{"a", "b"}, streamCorpus(t, topic, opts...).Keys())
	assert.Empty(t, streamCorpus(t, topic, opts...).Keys())
	assert.Equal(t, int64(2), topic.committed["catalog-indexer"])
}

func TestReplayGroupsAreDistinct(t *testing.T) {
	topic := newMemoryTopic()
	noop := func(context.Context, []byte, []byte) error { return nil }
	a := newConsumer(config.KafkaConfig{}, "t", noop, topic.open, Replay("catalog-indexer"))
	b := newConsumer(config.KafkaConfig{}, "t", noop, topic.open, Replay("catalog-indexer"))
	assert.NotEqual(t, a.Group(), b.Group())
}
