package registry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kaisigil/gate/pkg/canonicaljson"
)

// Backend persists and restores a single opaque snapshot blob. It is
// intentionally narrow — the registry only ever has one snapshot, so there
// is no content-addressing, listing, or deletion to speak of (unlike a
// general artifact store).
type Backend interface {
	// Load returns the current snapshot's bytes, or ErrNoSnapshot if none
	// exists yet.
	Load(ctx context.Context) ([]byte, error)
	// Save persists data as the current snapshot, atomically from the
	// caller's perspective: a failed Save must never corrupt a
	// previously-successful one.
	Save(ctx context.Context, data []byte) error
}

// ErrNoSnapshot is returned by a Backend when no prior snapshot exists.
var ErrNoSnapshot = errors.New("registry: no snapshot present")

// save serialises the registry to canonical JSON in the persisted-state
// format and writes it through the backend.
func (s *Store) save(ctx context.Context) error {
	s.mu.RLock()
	snapshot := struct {
		Spec     string `json:"spec"`
		Registry map[string]interface{} `json:"registry"`
	}{
		Spec:     SpecVersion,
		Registry: make(map[string]interface{}, len(s.registry)),
	}
	for url, p := range s.registry {
		snapshot.Registry[url] = p
	}
	s.mu.RUnlock()

	data, err := canonicaljson.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("registry: snapshot encode failed: %w", err)
	}
	return s.backend.Save(ctx, data)
}

// FileBackend persists the snapshot to a single file on disk, using the
// tmp-write + fsync + best-effort .bak + atomic rename sequence of §4.6:
// on load, it falls back to the .bak copy if the primary file is missing
// or corrupt.
type FileBackend struct {
	path string
}

// NewFileBackend constructs a FileBackend rooted at path (plus path+".tmp"
// and path+".bak").
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Load(ctx context.Context) ([]byte, error) {
	if data, err := os.ReadFile(b.path); err == nil {
		return data, nil
	}
	if data, err := os.ReadFile(b.path + ".bak"); err == nil {
		return data, nil
	}
	return nil, ErrNoSnapshot
}

func (b *FileBackend) Save(ctx context.Context, data []byte) error {
	tmp := b.path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("registry: open tmp snapshot failed: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("registry: write tmp snapshot failed: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("registry: fsync tmp snapshot failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("registry: close tmp snapshot failed: %w", err)
	}

	// Best-effort: preserve the prior snapshot as a .bak before replacing
	// it. A failure here must not block the rename — the new snapshot is
	// still valid without a backup.
	if prior, err := os.ReadFile(b.path); err == nil {
		_ = os.WriteFile(b.path+".bak", prior, 0o644)
	}

	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("registry: rename tmp snapshot failed: %w", err)
	}
	return nil
}
