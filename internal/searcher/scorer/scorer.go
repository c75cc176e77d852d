// Package scorer ranks documents of an inverted index against a free-text
// query. A document's score is the sum of its weights for the distinct query
// terms; results are ordered by score, then by corpus order.
package scorer

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog/pkg/errors"
)

// Hit is one ranked document.
type Hit struct {
	DocKey string  `json:"doc_key"`
	Score  float64 `json:"score"`
}

// Result holds the top hits and the number of documents that matched at
// least one query term.
type Result struct {
	Hits  []Hit    `json:"hits"`
	Total int      `json:"total"`
	Terms []string `json:"terms"`
}

// Search returns the k best documents for query. k == 0 yields no hits;
// a negative k is an invalid argument.
func Search(ix *index.Index, query string, k int) (Result, error) {
	if k < 0 {
		return Result{}, apperrors.InvalidArgument("k must be >= 0, got %d", k)
	}
	res := Result{Hits: []Hit{}, Terms: []string{}}
	if ix == nil {
		return res, nil
	}

	terms := tokenizer.Distinct(query)
	// fixed summation order keeps scores independent of query word order
	sort.Strings(terms)

	scores := make(map[int]float64)
	for _, term := range terms {
		postings := ix.Postings(term)
		if len(postings) == 0 {
			continue
		}
		res.Terms = append(res.Terms, term)
		for _, p := range postings {
			scores[p.Doc] += p.Weight
		}
	}
	res.Total = len(scores)
	if k == 0 || len(scores) == 0 {
		return res, nil
	}

	candidates := make([]candidate, 0, len(scores))
	for doc, score := range scores {
		candidates = append(candidates, candidate{doc: doc, score: score})
	}
	for _, c := range topK(candidates, k) {
		res.Hits = append(res.Hits, Hit{DocKey: ix.Key(c.doc), Score: c.score})
	}
	return res, nil
}
