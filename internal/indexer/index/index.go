// Package index holds the immutable inverted index: term -> (document key ->
// weight), plus the corpus order of document keys used to break ranking ties.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/weighting"
)

// Posting is one document entry of a term. Doc is the document's position
// in corpus order.
type Posting struct {
	Doc    int
	Weight float64
}

// PostingList is ordered by Doc.
type PostingList []Posting

// TermEntry pairs a term with its postings.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Index is safe for concurrent readers; nothing mutates it after
// construction.
type Index struct {
	docs     []string
	ord      map[string]int
	terms    []string
	postings map[string]PostingList
}

// Empty returns an index with no documents and no terms.
func Empty() *Index {
	return NewMemoryIndex(nil).Snapshot()
}

// Build transposes a weight matrix into an inverted index. Zero weights are
// dropped. Documents keep their matrix order even when they have no terms.
func Build(m *weighting.Matrix) *Index {
	mem := NewMemoryIndex(m.Keys)
	for i, row := range m.Rows {
		key := m.Keys[i]
		for term, w := range row {
			mem.Add(term, key, w)
		}
	}
	return mem.Snapshot()
}

// Postings returns the posting list for term, or nil if the term is unknown.
func (ix *Index) Postings(term string) PostingList {
	return ix.postings[term]
}

// Weight returns the weight of term in the document identified by key.
func (ix *Index) Weight(term, key string) (float64, bool) {
	doc, ok := ix.ord[key]
	if !ok {
		return 0, false
	}
	list := ix.postings[term]
	i := sort.Search(len(list), func(i int) bool { return list[i].Doc >= doc })
	if i < len(list) && list[i].Doc == doc {
		return list[i].Weight, true
	}
	return 0, false
}

// Terms returns the vocabulary in lexicographic order.
func (ix *Index) Terms() []string { return ix.terms }

// Docs returns document keys in corpus order.
func (ix *Index) Docs() []string { return ix.docs }

// Key returns the document key at corpus position doc.
func (ix *Index) Key(doc int) string { return ix.docs[doc] }

// Entries returns every term with its postings, terms sorted.
func (ix *Index) Entries() []TermEntry {
	entries := make([]TermEntry, len(ix.terms))
	for i, t := range ix.terms {
		entries[i] = TermEntry{Term: t, Postings: ix.postings[t]}
	}
	return entries
}

func (ix *Index) TermCount() int { return len(ix.terms) }

func (ix *Index) DocCount() int { return len(ix.docs) }
