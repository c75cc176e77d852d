// Package corpus reads the document feed produced by the crawler: one JSON
// object per line, each holding a single {"<document key>": "<text>"} entry.
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog/pkg/errors"
)

// maxLineSize bounds a single record; crawled pages can be large.
const maxLineSize = 64 << 20

// Record is one (document key, text) pair.
type Record struct {
	Key  string
	Text string
}

// Corpus maps document keys to text and remembers the order in which keys
// were first seen.
type Corpus struct {
	keys  []string
	texts map[string]string
}

// New returns an empty Corpus.
func New() *Corpus {
	return &Corpus{texts: make(map[string]string)}
}

// Add stores rec. A repeated key overwrites the earlier text but keeps its
// original position.
func (c *Corpus) Add(rec Record) (replaced bool) {
	if _, ok := c.texts[rec.Key]; ok {
		replaced = true
	} else {
		c.keys = append(c.keys, rec.Key)
	}
	c.texts[rec.Key] = rec.Text
	return replaced
}

// Len returns the number of distinct documents.
func (c *Corpus) Len() int { return len(c.keys) }

// Keys returns document keys in first-seen order. The slice must not be modified.
func (c *Corpus) Keys() []string { return c.keys }

// Text returns the text for key.
func (c *Corpus) Text(key string) (string, bool) {
	t, ok := c.texts[key]
	return t, ok
}

// Documents returns the corpus as records in first-seen order.
func (c *Corpus) Documents() []Record {
	docs := make([]Record, len(c.keys))
	for i, k := range c.keys {
		docs[i] = Record{Key: k, Text: c.texts[k]}
	}
	return docs
}

// Load reads newline-delimited records from r. The first malformed record
// aborts the load with a corpus format error. Blank lines are skipped and
// empty input yields an empty corpus.
func Load(r io.Reader) (*Corpus, error) {
	logger := slog.Default().With("component", "corpus-loader")
	c := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	duplicates := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		rec, err := ParseRecord(raw)
		if err != nil {
			return nil, withLine(err, line)
		}
		if c.Add(rec) {
			duplicates++
			logger.Debug("duplicate document key, keeping later text", "key", rec.Key, "line", line)
		}
	}
	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, apperrors.CorpusFormat(line+1, err, "record exceeds %d bytes", maxLineSize)
		}
		return nil, apperrors.IOFailure(err, "reading corpus")
	}
	logger.Info("corpus loaded", "documents", c.Len(), "lines", line, "duplicates", duplicates)
	return c, nil
}

// ParseRecord decodes a single {"key": "text"} object.
func ParseRecord(raw []byte) (Record, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Record{}, apperrors.CorpusFormat(0, err, "record is not a JSON object")
	}
	if len(obj) != 1 {
		return Record{}, apperrors.CorpusFormat(0, nil, "record must hold exactly one entry, got %d", len(obj))
	}
	var rec Record
	for k, v := range obj {
		var text string
		if v = bytes.TrimSpace(v); len(v) == 0 || v[0] != '"' {
			return Record{}, apperrors.CorpusFormat(0, nil, "text for key %q is not a string", k)
		}
		if err := json.Unmarshal(v, &text); err != nil {
			return Record{}, apperrors.CorpusFormat(0, err, "text for key %q is not a string", k)
		}
		rec = Record{Key: k, Text: text}
	}
	return rec, nil
}

// Collect drains records from a streaming source into a Corpus with the same
// last-write-wins rule as Load. It returns when records is closed, or with
// the context error if ctx ends first.
func Collect(ctx context.Context, records <-chan Record) (*Corpus, error) {
	c := New()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("collecting corpus: %w", ctx.Err())
		case rec, ok := <-records:
			if !ok {
				return c, nil
			}
			c.Add(rec)
		}
	}
}

func withLine(err error, line int) error {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return apperrors.CorpusFormat(line, appErr.Cause, "%s", appErr.Message)
	}
	return apperrors.CorpusFormat(line, err, "invalid record")
}
