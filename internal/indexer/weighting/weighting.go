// Package weighting computes the TF-IDF document-term matrix for a corpus.
//
// The computation runs in two parallel passes separated by a barrier. The
// first pass counts term frequencies per document; document frequencies are
// then merged; the second pass turns counts into smoothed TF-IDF weights and
// L2-normalises each row:
//
//	idf(t) = ln((1 + N) / (1 + df(t))) + 1
//	w(d,t) = tf(d,t) * idf(t)
//
// Each row is computed from its own counts and the shared df table only, and
// terms are accumulated in lexicographic order, so the result does not depend
// on the number of workers.
package weighting

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/tokenizer"
)

// Row holds the non-zero weights of one document.
type Row map[string]float64

// Matrix is the sparse weight matrix. Rows[i] belongs to Keys[i], in corpus
// order.
type Matrix struct {
	Keys []string
	Rows []Row
	// DF is the document frequency of every vocabulary term.
	DF map[string]int
}

// Vocabulary returns the distinct terms of the corpus in sorted order.
func (m *Matrix) Vocabulary() []string {
	vocab := make([]string, 0, len(m.DF))
	for t := range m.DF {
		vocab = append(vocab, t)
	}
	sort.Strings(vocab)
	return vocab
}

// Compute weighs docs with at most workers goroutines per pass. workers <= 0
// means GOMAXPROCS.
func Compute(ctx context.Context, docs []corpus.Record, workers int) (*Matrix, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	n := len(docs)
	m := &Matrix{
		Keys: make([]string, n),
		Rows: make([]Row, n),
		DF:   make(map[string]int),
	}
	for i, d := range docs {
		m.Keys[i] = d.Key
	}
	if n == 0 {
		return m, nil
	}

	counts := make([]map[string]int, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			counts[i] = termFrequencies(docs[i].Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("counting term frequencies: %w", err)
	}

	for _, tf := range counts {
		for t := range tf {
			m.DF[t]++
		}
	}
	idf := make(map[string]float64, len(m.DF))
	for t, df := range m.DF {
		idf[t] = InverseDocumentFrequency(n, df)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range counts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m.Rows[i] = weigh(counts[i], idf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("weighting documents: %w", err)
	}
	return m, nil
}

// InverseDocumentFrequency is the smoothed idf of a term seen in df of n
// documents.
func InverseDocumentFrequency(n, df int) float64 {
	return math.Log(float64(1+n)/float64(1+df)) + 1
}

func termFrequencies(text string) map[string]int {
	tf := make(map[string]int)
	for _, t := range tokenizer.Tokenize(text) {
		tf[t]++
	}
	return tf
}

func weigh(tf map[string]int, idf map[string]float64) Row {
	row := make(Row, len(tf))
	if len(tf) == 0 {
		return row
	}
	terms := make([]string, 0, len(tf))
	for t := range tf {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	var sumSquares float64
	for _, t := range terms {
		w := float64(tf[t]) * idf[t]
		row[t] = w
		sumSquares += w * w
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return row
	}
	for _, t := range terms {
		row[t] /= norm
	}
	return row
}
