package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog/pkg/errors"
)

// Loaded is an index read from disk together with its manifest, if any.
type Loaded struct {
	Index    *index.Index
	Manifest *Manifest
	Path     string
}

// BuildID returns the manifest build id, or "" for a manifest-less artifact.
func (l *Loaded) BuildID() string {
	if l.Manifest == nil {
		return ""
	}
	return l.Manifest.BuildID
}

// Read decodes an artifact from r. Document order starts with order (taken
// from a manifest); keys not listed there are appended in the order they
// first appear in the stream.
func Read(r io.Reader, order []string) (*index.Index, error) {
	src := &recordingReader{r: r}
	ix, err := decode(json.NewDecoder(src), order)
	if err != nil {
		if src.err != nil {
			return nil, apperrors.IOFailure(src.err, "reading artifact")
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.IndexFormat(err, "decoding artifact")
	}
	return ix, nil
}

func decode(dec *json.Decoder, order []string) (*index.Index, error) {
	dec.UseNumber()
	mem := index.NewMemoryIndex(order)

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for dec.More() {
		term, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[term]; dup {
			return nil, apperrors.IndexFormat(nil, "duplicate term %q", term)
		}
		seen[term] = struct{}{}
		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("postings of %q: %w", term, err)
		}
		for dec.More() {
			key, err := stringToken(dec)
			if err != nil {
				return nil, err
			}
			w, err := weightToken(dec)
			if err != nil {
				return nil, fmt.Errorf("weight of %q in %q: %w", term, key, err)
			}
			if mem.Has(term, key) {
				return nil, apperrors.IndexFormat(nil, "duplicate posting %q in %q", key, term)
			}
			mem.Add(term, key, w)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return nil, apperrors.IndexFormat(nil, "trailing data after artifact")
		}
		return nil, err
	}
	return mem.Snapshot(), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return unexpectedEnd(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return apperrors.IndexFormat(nil, "expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", unexpectedEnd(err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", apperrors.IndexFormat(nil, "expected string, got %v", tok)
	}
	return s, nil
}

func weightToken(dec *json.Decoder) (float64, error) {
	tok, err := dec.Token()
	if err != nil {
		return 0, unexpectedEnd(err)
	}
	num, ok := tok.(json.Number)
	if !ok {
		return 0, apperrors.IndexFormat(nil, "expected number, got %v", tok)
	}
	w, err := strconv.ParseFloat(string(num), 64)
	if err != nil || math.IsInf(w, 0) || math.IsNaN(w) {
		return 0, apperrors.IndexFormat(err, "weight %s is not a finite number", num)
	}
	if w < 0 {
		return 0, apperrors.IndexFormat(nil, "negative weight %s", num)
	}
	return w, nil
}

func unexpectedEnd(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// recordingReader remembers a failure of the underlying reader so that I/O
// errors are not reported as format errors.
type recordingReader struct {
	r   io.Reader
	err error
}

func (rr *recordingReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	if err != nil && err != io.EOF {
		rr.err = err
	}
	return n, err
}

// Load reads the artifact at path and its manifest. When a manifest exists
// its digest and counts must match the artifact.
func Load(path string) (*Loaded, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IOFailure(err, "opening artifact %s", path)
	}
	defer f.Close()

	hasher := blake3.New()
	file := &recordingReader{r: f}
	var src io.Reader = file
	if IsCompressed(path) {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, apperrors.IndexFormat(err, "opening zstd stream %s", path)
		}
		defer dec.Close()
		src = dec
	}
	var order []string
	if m != nil {
		order = m.Documents
	}
	ix, err := Read(io.TeeReader(src, hasher), order)
	if err != nil {
		if file.err != nil {
			return nil, apperrors.IOFailure(file.err, "reading artifact %s", path)
		}
		if errors.Is(err, apperrors.ErrIOFailure) {
			// the file was readable, so the zstd layer rejected its content
			return nil, apperrors.IndexFormat(err, "decompressing artifact %s", path)
		}
		return nil, err
	}
	if m != nil {
		if digest := fmt.Sprintf("%x", hasher.Sum(nil)); digest != m.Digest {
			return nil, apperrors.IndexFormat(nil, "digest mismatch for %s: manifest %s, artifact %s",
				path, m.Digest, digest)
		}
		if ix.DocCount() != m.DocumentCount {
			return nil, apperrors.IndexFormat(nil, "artifact references %d documents, manifest lists %d",
				ix.DocCount(), m.DocumentCount)
		}
		if ix.TermCount() != m.TermCount {
			return nil, apperrors.IndexFormat(nil, "artifact holds %d terms, manifest lists %d",
				ix.TermCount(), m.TermCount)
		}
	}
	return &Loaded{Index: ix, Manifest: m, Path: path}, nil
}
