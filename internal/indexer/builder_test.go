package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/registry"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/scorer"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/resilience"
)

type fakeRecorder struct {
	builds []registry.Build
	fail   int
}

func (f *fakeRecorder) Record(_ context.Context, b registry.Build) error {
	if f.fail > 0 {
		f.fail--
		return errors.New("connection reset")
	}
	f.builds = append(f.builds, b)
	return nil
}

type fakePublisher struct {
	events []kafka.Event
}

func (f *fakePublisher) Publish(_ context.Context, events ...kafka.Event) error {
	f.events = append(f.events, events...)
	return nil
}

func loadCorpus(t *testing.T, jsonl string) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Load(strings.NewReader(jsonl))
	require.NoError(t, err)
	return c
}

func TestRunBuildsAndSavesSearchableIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer", "output.json")
	m := metrics.New(nil)
	b := NewBuilder(config.IndexerConfig{ArtifactPath: path, Workers: 2}, m)

	build, err := b.Run(context.Background(), loadCorpus(t, `{"doc1": "apple banana"}
{"doc2": "banana cherry"}
`))
	require.NoError(t, err)
	assert.NotEmpty(t, build.ID)
	assert.Equal(t, build.ID, build.Manifest.BuildID)
	assert.Equal(t, 2, build.Manifest.DocumentCount)
	assert.Equal(t, 3, build.Manifest.TermCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IndexTerms))

	loaded, err := artifact.Load(path)
	require.NoError(t, err)
	res, err := scorer.Search(loaded.Index, "banana", 2)
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "doc1", res.Hits[0].DocKey)
	assert.Equal(t, "doc2", res.Hits[1].DocKey)
}

func TestRunEmptyCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	b := NewBuilder(config.IndexerConfig{ArtifactPath: path}, nil)

	build, err := b.Run(context.Background(), corpus.New())
	require.NoError(t, err)
	assert.Zero(t, build.Index.TermCount())

	loaded, err := artifact.Load(path)
	require.NoError(t, err)
	res, err := scorer.Search(loaded.Index, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestRunCancelled(t *testing.T) {
	m := metrics.New(nil)
	b := NewBuilder(config.IndexerConfig{ArtifactPath: filepath.Join(t.TempDir(), "o.json")}, m)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Run(ctx, loadCorpus(t, `{"a": "alpha beta"}`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("failed")))
}

func TestPublish(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	rec := &fakeRecorder{fail: 1}
	pub := &fakePublisher{}
	b := NewBuilder(config.IndexerConfig{ArtifactPath: path}, nil).
		WithRecorder(rec).
		WithPublisher(pub).
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})

	build, err := b.Run(context.Background(), loadCorpus(t, `{"doc1": "apple"}`))
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), build))

	require.Len(t, rec.builds, 1, "transient registry failure is retried")
	assert.Equal(t, build.ID, rec.builds[0].BuildID)
	assert.Equal(t, build.Manifest.Digest, rec.builds[0].Digest)

	require.Len(t, pub.events, 1)
	assert.Equal(t, build.ID, pub.events[0].Key)
	data, err := json.Marshal(pub.events[0].Value)
	require.NoError(t, err)
	event, err := kafka.DecodeJSON[artifact.Published](data)
	require.NoError(t, err)
	assert.Equal(t, path, event.ArtifactPath)
	assert.Equal(t, 1, event.Documents)
}

func TestPublishWithoutSinks(t *testing.T) {
	b := NewBuilder(config.IndexerConfig{ArtifactPath: filepath.Join(t.TempDir(), "o.json")}, nil)
	build, err := b.Run(context.Background(), corpus.New())
	require.NoError(t, err)
	assert.NoError(t, b.Publish(context.Background(), build))
}
