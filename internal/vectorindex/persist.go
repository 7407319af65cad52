package vectorindex

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/basinlabs/symgraph/internal/sgerrors"
)

// collectionSnapshot is the on-disk form of one collection. Rows carry
// their vectors, so the HNSW graph is rebuilt on load instead of being
// serialized separately.
type collectionSnapshot struct {
	Name string
	Dim  int
	Rows []Row
}

const snapshotExt = ".vec.gob"

// Save writes every collection to dir, one file per collection, using a
// temp-file-plus-rename so a crash mid-save never corrupts an existing
// snapshot.
func (s *Store) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return sgerrors.IOErr("vectorindex: create snapshot dir", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, c := range s.collections {
		snap := collectionSnapshot{Name: name, Dim: c.dim}
		ids := make([]string, 0, len(c.rows))
		for id := range c.rows {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			snap.Rows = append(snap.Rows, *c.rows[id])
		}

		path := filepath.Join(dir, name+snapshotExt)
		tmp := path + ".tmp"
		f, err := os.Create(tmp)
		if err != nil {
			return sgerrors.IOErr("vectorindex: create snapshot", err).WithFile(path)
		}
		if err := gob.NewEncoder(f).Encode(snap); err != nil {
			f.Close()
			os.Remove(tmp)
			return sgerrors.IOErr("vectorindex: encode snapshot", err).WithFile(path)
		}
		if err := f.Close(); err != nil {
			os.Remove(tmp)
			return sgerrors.IOErr("vectorindex: close snapshot", err).WithFile(path)
		}
		if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return sgerrors.IOErr("vectorindex: finalize snapshot", err).WithFile(path)
		}
	}
	return nil
}

// Load restores all collection snapshots found in dir. A missing dir is
// an empty store, not an error.
func Load(dir string) (*Store, error) {
	s := New()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, sgerrors.IOErr("vectorindex: read snapshot dir", err).WithFile(dir)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, sgerrors.IOErr("vectorindex: open snapshot", err).WithFile(path)
		}
		var snap collectionSnapshot
		decodeErr := gob.NewDecoder(f).Decode(&snap)
		f.Close()
		if decodeErr != nil {
			return nil, sgerrors.StoreErr("vectorindex: decode snapshot", decodeErr).WithFile(path)
		}
		if err := s.Add(snap.Name, snap.Rows); err != nil {
			return nil, err
		}
	}
	return s, nil
}
