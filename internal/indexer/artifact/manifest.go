package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog/pkg/errors"
)

const manifestSuffix = ".manifest.json"

// Manifest describes one published artifact.
type Manifest struct {
	BuildID       string    `json:"build_id"`
	CreatedAt     time.Time `json:"created_at"`
	Documents     []string  `json:"documents"`
	DocumentCount int       `json:"document_count"`
	TermCount     int       `json:"term_count"`
	Digest        string    `json:"digest"`
}

// ManifestPath returns the sidecar path for an artifact.
func ManifestPath(artifactPath string) string {
	return artifactPath + manifestSuffix
}

// ReadManifest loads the manifest of artifactPath. It returns (nil, nil) when
// there is none.
func ReadManifest(artifactPath string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(artifactPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, apperrors.IOFailure(err, "reading manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.IndexFormat(err, "parsing manifest %s", ManifestPath(artifactPath))
	}
	if m.DocumentCount != len(m.Documents) {
		return nil, apperrors.IndexFormat(nil, "manifest lists %d documents but counts %d",
			len(m.Documents), m.DocumentCount)
	}
	return &m, nil
}

func stageManifest(path string, m *Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling manifest: %w", err)
	}
	tmp, err := stage(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
	if err != nil {
		return "", apperrors.IOFailure(err, "saving manifest %s", path)
	}
	return tmp, nil
}

// Published announces a freshly saved artifact to searchers.
type Published struct {
	BuildID      string    `json:"build_id"`
	ArtifactPath string    `json:"artifact_path"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	Digest       string    `json:"digest"`
	PublishedAt  time.Time `json:"published_at"`
}
