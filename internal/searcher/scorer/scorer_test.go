package scorer

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/weighting"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog/pkg/errors"
)

func build(t testing.TB, docs ...corpus.Record) *index.Index {
	t.Helper()
	m, err := weighting.Compute(context.Background(), docs, 0)
	require.NoError(t, err)
	return index.Build(m)
}

func fruit(t testing.TB) *index.Index {
	return build(t,
		corpus.Record{Key: "doc1", Text: "apple banana"},
		corpus.Record{Key: "doc2", Text: "banana cherry"},
	)
}

func keys(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.DocKey
	}
	return out
}

func TestSearchTieBrokenByCorpusOrder(t *testing.T) {
	res, err := Search(fruit(t), "banana", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1", "doc2"}, keys(res.Hits))
	assert.Equal(t, res.Hits[0].Score, res.Hits[1].Score)
	assert.Equal(t, 2, res.Total)
}

func TestSearchTieOrderIsNotAlphabetical(t *testing.T) {
	ix := build(t,
		corpus.Record{Key: "zeta", Text: "banana apple"},
		corpus.Record{Key: "alpha", Text: "banana cherry"},
	)
	res, err := Search(ix, "banana", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, keys(res.Hits))
}

func TestSearchSingleMatch(t *testing.T) {
	res, err := Search(fruit(t), "apple", 5)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "doc1", res.Hits[0].DocKey)
	assert.Greater(t, res.Hits[0].Score, 0.0)
}

func TestSearchNoMatch(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unknown term", "xyz"},
		{"empty query", ""},
		{"stop words only", "the and of"},
		{"punctuation only", "?!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Search(fruit(t), tt.query, 5)
			require.NoError(t, err)
			assert.Empty(t, res.Hits)
			assert.NotNil(t, res.Hits)
			assert.Zero(t, res.Total)
		})
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	res, err := Search(build(t), "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	res, err = Search(nil, "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestSearchLimits(t *testing.T) {
	ix := fruit(t)

	res, err := Search(ix, "banana", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, 2, res.Total)

	res, err = Search(ix, "banana", 100)
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)

	_, err = Search(ix, "banana", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestSearchScoresAreAdditive(t *testing.T) {
	ix := fruit(t)
	res, err := Search(ix, "Apple BANANA apple", 1)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)

	apple, _ := ix.Weight("apple", "doc1")
	banana, _ := ix.Weight("banana", "doc1")
	assert.Equal(t, "doc1", res.Hits[0].DocKey)
	assert.InDelta(t, apple+banana, res.Hits[0].Score, 1e-12)
	assert.Equal(t, []string{"apple", "banana"}, res.Terms)

	swapped, err := Search(ix, "banana apple", 1)
	require.NoError(t, err)
	assert.Equal(t, res.Hits, swapped.Hits)
}

func TestTopKMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cands := make([]candidate, 500)
	for i := range cands {
		// few distinct scores so ties are common
		cands[i] = candidate{doc: i, score: float64(rng.Intn(20))}
	}
	rng.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })

	full := append([]candidate(nil), cands...)
	sort.Slice(full, func(i, j int) bool { return better(full[i], full[j]) })

	for _, k := range []int{1, 7, 50, 499} {
		got := topK(append([]candidate(nil), cands...), k)
		assert.Equal(t, full[:k], got, "k=%d", k)
	}
}

func BenchmarkSearch(b *testing.B) {
	docs := make([]corpus.Record, 5000)
	for i := range docs {
		docs[i] = corpus.Record{
			Key:  fmt.Sprintf("https://example.com/page/%d", i),
			Text: fmt.Sprintf("search engine ranking document%d topic%d shared words", i, i%40),
		}
	}
	ix := build(b, docs...)
	for b.Loop() {
		if _, err := Search(ix, "search topic7 ranking", 10); err != nil {
			b.Fatal(err)
		}
	}
}
