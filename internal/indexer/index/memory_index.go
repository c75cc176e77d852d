package index

import (
	"sort"
)

// MemoryIndex accumulates postings before they are frozen into an Index. It
// is used by Build and by the artifact reader and is not safe for concurrent
// use.
type MemoryIndex struct {
	docs  []string
	ord   map[string]int
	index map[string]map[int]float64
}

// NewMemoryIndex starts an index whose document order begins with docs.
// Keys first seen through Add are appended after them.
func NewMemoryIndex(docs []string) *MemoryIndex {
	m := &MemoryIndex{
		docs:  make([]string, 0, len(docs)),
		ord:   make(map[string]int, len(docs)),
		index: make(map[string]map[int]float64),
	}
	for _, d := range docs {
		m.doc(d)
	}
	return m
}

func (m *MemoryIndex) doc(key string) int {
	if i, ok := m.ord[key]; ok {
		return i
	}
	i := len(m.docs)
	m.ord[key] = i
	m.docs = append(m.docs, key)
	return i
}

// Add records weight for (term, key). Non-positive weights are ignored; a
// repeated pair keeps the last weight.
func (m *MemoryIndex) Add(term, key string, weight float64) {
	doc := m.doc(key)
	if weight <= 0 {
		return
	}
	docs, ok := m.index[term]
	if !ok {
		docs = make(map[int]float64)
		m.index[term] = docs
	}
	docs[doc] = weight
}

// Has reports whether (term, key) already holds a weight.
func (m *MemoryIndex) Has(term, key string) bool {
	doc, ok := m.ord[key]
	if !ok {
		return false
	}
	_, ok = m.index[term][doc]
	return ok
}

func (m *MemoryIndex) DocCount() int { return len(m.docs) }

// Snapshot freezes the accumulated postings. The MemoryIndex must not be used
// afterwards.
func (m *MemoryIndex) Snapshot() *Index {
	ix := &Index{
		docs:     m.docs,
		ord:      m.ord,
		terms:    make([]string, 0, len(m.index)),
		postings: make(map[string]PostingList, len(m.index)),
	}
	for term, docs := range m.index {
		postings := make(PostingList, 0, len(docs))
		for doc, w := range docs {
			postings = append(postings, Posting{Doc: doc, Weight: w})
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].Doc < postings[j].Doc
		})
		ix.terms = append(ix.terms, term)
		ix.postings[term] = postings
	}
	sort.Strings(ix.terms)
	return ix
}
