// Package artifact persists an inverted index as a JSON document:
//
//	{"<term>": {"<document key>": <weight>, ...}, ...}
//
// Terms are written in lexicographic order and postings in corpus order, so
// identical indexes serialise to identical bytes. A sidecar manifest records
// the corpus order, counts and a BLAKE3 digest of the JSON bytes. Paths
// ending in .zst are zstd-compressed; the digest always covers the
// uncompressed JSON.
package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog/pkg/errors"
)

// CompressedExt selects zstd compression when it suffixes an artifact path.
const CompressedExt = ".zst"

// Write serialises ix as JSON to w.
func Write(w io.Writer, ix *index.Index) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	for i, entry := range ix.Entries() {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendString(buf, entry.Term)
		buf = append(buf, ':', '{')
		for j, p := range entry.Postings {
			if j > 0 {
				buf = append(buf, ',')
			}
			buf = appendString(buf, ix.Key(p.Doc))
			buf = append(buf, ':')
			buf = strconv.AppendFloat(buf, p.Weight, 'g', -1, 64)
		}
		buf = append(buf, '}')
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("writing term %q: %w", entry.Term, err)
		}
		buf = buf[:0]
	}
	buf = append(buf, '}')
	if _, err := bw.Write(buf); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return bw.Flush()
}

func appendString(buf []byte, s string) []byte {
	// json.Marshal on a string cannot fail.
	b, _ := json.Marshal(s)
	return append(buf, b...)
}

// Save writes ix to path and its manifest next to it. Both files are staged
// as .tmp siblings and renamed into place only once both are complete, so a
// failed save leaves the previous artifact and manifest pair untouched. An
// empty buildID is replaced by a fresh UUID.
func Save(path string, ix *index.Index, buildID string) (*Manifest, error) {
	if buildID == "" {
		buildID = uuid.NewString()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.IOFailure(err, "creating artifact directory")
	}

	hasher := blake3.New()
	artifactTmp, err := stage(path, func(f *os.File) error {
		var dst io.Writer = f
		var enc *zstd.Encoder
		if IsCompressed(path) {
			var err error
			enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
			if err != nil {
				return fmt.Errorf("creating zstd encoder: %w", err)
			}
			dst = enc
		}
		if err := Write(io.MultiWriter(dst, hasher), ix); err != nil {
			return err
		}
		if enc != nil {
			return enc.Close()
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.IOFailure(err, "saving artifact %s", path)
	}

	m := &Manifest{
		BuildID:       buildID,
		CreatedAt:     time.Now().UTC(),
		Documents:     ix.Docs(),
		DocumentCount: ix.DocCount(),
		TermCount:     ix.TermCount(),
		Digest:        fmt.Sprintf("%x", hasher.Sum(nil)),
	}
	if m.Documents == nil {
		m.Documents = []string{}
	}
	manifestTmp, err := stageManifest(ManifestPath(path), m)
	if err != nil {
		os.Remove(artifactTmp)
		return nil, err
	}

	if err := publishPair(path, artifactTmp, ManifestPath(path), manifestTmp); err != nil {
		return nil, apperrors.IOFailure(err, "publishing artifact %s", path)
	}
	return m, nil
}

// publishPair renames both staged files into place. The previous artifact is
// kept as a hard link until the manifest lands so it can be restored if the
// second rename fails.
func publishPair(path, artifactTmp, manifestPath, manifestTmp string) error {
	backup := path + ".prev"
	os.Remove(backup)
	hasBackup := os.Link(path, backup) == nil
	defer os.Remove(backup)

	if err := os.Rename(artifactTmp, path); err != nil {
		os.Remove(artifactTmp)
		os.Remove(manifestTmp)
		return fmt.Errorf("renaming %s: %w", artifactTmp, err)
	}
	if err := os.Rename(manifestTmp, manifestPath); err != nil {
		os.Remove(manifestTmp)
		if hasBackup {
			os.Rename(backup, path)
		} else {
			os.Remove(path)
		}
		return fmt.Errorf("renaming %s: %w", manifestTmp, err)
	}
	return nil
}

// IsCompressed reports whether path names a zstd artifact.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedExt)
}

// stage writes path+".tmp" through fill and syncs it. The caller renames it.
func stage(path string, fill func(f *os.File) error) (string, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer f.Close()
	if err := fill(f); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	return tmpPath, nil
}
