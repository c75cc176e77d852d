// Package live holds the index a searcher is currently serving. A reload
// builds a complete new Snapshot and installs it with one atomic store, so
// a query that called Current keeps a consistent view for its whole run.
package live

import (
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/index"
)

// Snapshot is an immutable index plus where it came from.
type Snapshot struct {
	Index    *index.Index
	BuildID  string
	Path     string
	LoadedAt time.Time
}

// FromLoaded wraps an artifact read from disk.
func FromLoaded(l *artifact.Loaded) *Snapshot {
	return &Snapshot{
		Index:    l.Index,
		BuildID:  l.BuildID(),
		Path:     l.Path,
		LoadedAt: time.Now().UTC(),
	}
}

// Index is the swappable holder.
type Index struct {
	current atomic.Pointer[Snapshot]
}

// New returns a holder serving snap, or an empty index when snap is nil.
func New(snap *Snapshot) *Index {
	if snap == nil {
		snap = &Snapshot{Index: index.Empty(), LoadedAt: time.Now().UTC()}
	}
	l := &Index{}
	l.current.Store(snap)
	return l
}

// Current returns the snapshot to use for one query.
func (l *Index) Current() *Snapshot {
	return l.current.Load()
}

// Swap installs next and returns the snapshot it replaced.
func (l *Index) Swap(next *Snapshot) *Snapshot {
	return l.current.Swap(next)
}
