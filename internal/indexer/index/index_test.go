package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/weighting"
)

func buildFrom(t *testing.T, docs ...corpus.Record) *Index {
	t.Helper()
	m, err := weighting.Compute(context.Background(), docs, 2)
	require.NoError(t, err)
	return Build(m)
}

func TestBuildPostingsFollowCorpusOrder(t *testing.T) {
	ix := buildFrom(t,
		corpus.Record{Key: "z-last-alphabetically", Text: "shared alpha"},
		corpus.Record{Key: "a-first-alphabetically", Text: "shared beta"},
	)

	assert.Equal(t, []string{"z-last-alphabetically", "a-first-alphabetically"}, ix.Docs())
	assert.Equal(t, []string{"alpha", "beta", "shared"}, ix.Terms())

	shared := ix.Postings("shared")
	require.Len(t, shared, 2)
	assert.Equal(t, 0, shared[0].Doc)
	assert.Equal(t, 1, shared[1].Doc)
	assert.Equal(t, "a-first-alphabetically", ix.Key(shared[1].Doc))
}

func TestBuildPostingIffPositiveWeight(t *testing.T) {
	docs := []corpus.Record{
		{Key: "doc1", Text: "apple banana"},
		{Key: "doc2", Text: "banana cherry"},
		{Key: "doc3", Text: "the and of"},
	}
	m, err := weighting.Compute(context.Background(), docs, 1)
	require.NoError(t, err)
	ix := Build(m)

	for i, row := range m.Rows {
		for _, term := range m.Vocabulary() {
			w, ok := ix.Weight(term, m.Keys[i])
			if row[term] > 0 {
				assert.True(t, ok, "%s/%s", term, m.Keys[i])
				assert.Equal(t, row[term], w)
			} else {
				assert.False(t, ok, "%s/%s", term, m.Keys[i])
			}
		}
	}
	assert.Equal(t, 3, ix.DocCount(), "term-less documents keep their slot")
	assert.Equal(t, 3, ix.TermCount())
}

func TestBuildEmpty(t *testing.T) {
	ix := buildFrom(t)
	assert.Zero(t, ix.DocCount())
	assert.Zero(t, ix.TermCount())
	assert.Nil(t, ix.Postings("anything"))
	assert.Empty(t, ix.Entries())
}

func TestMemoryIndex(t *testing.T) {
	mem := NewMemoryIndex([]string{"b", "a"})
	mem.Add("go", "a", 0.5)
	mem.Add("go", "c", 0.25)
	mem.Add("go", "b", 0)
	mem.Add("rust", "a", 0.1)
	mem.Add("rust", "a", 0.2)

	assert.True(t, mem.Has("go", "a"))
	assert.False(t, mem.Has("go", "b"))
	assert.Equal(t, 3, mem.DocCount())

	ix := mem.Snapshot()
	assert.Equal(t, []string{"b", "a", "c"}, ix.Docs())
	assert.Equal(t, PostingList{{Doc: 1, Weight: 0.5}, {Doc: 2, Weight: 0.25}}, ix.Postings("go"))
	assert.Equal(t, PostingList{{Doc: 1, Weight: 0.2}}, ix.Postings("rust"))
	_, ok := ix.Weight("go", "missing")
	assert.False(t, ok)
}
