package docsearch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Stats summarizes an indexing run.
type Stats struct {
	Files   int
	Chunks  int
	Skipped int
	// Removed counts sources under the directory whose files are gone.
	Removed int
}

// IndexFile chunks path and replaces its entries in the store.
func (s *Store) IndexFile(ctx context.Context, path string) (int, error) {
	chunks, err := ChunkFile(path)
	if err != nil {
		return 0, err
	}
	return s.Replace(ctx, path, chunks)
}

// IndexDir indexes every supported file under dir. Files of unsupported
// types are skipped; a file that fails to index stops the run. After a
// complete run, sources under dir that no longer exist are removed.
func (s *Store) IndexDir(ctx context.Context, dir string) (Stats, error) {
	var st Stats
	seen := make(map[string]bool)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := FormatFor(path); !ok {
			s.logger.Debug("skipping unsupported file", "path", path)
			st.Skipped++
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.IndexFile(ctx, path)
		if err != nil {
			return fmt.Errorf("index %s: %w", path, err)
		}
		seen[path] = true
		st.Files++
		st.Chunks += n
		s.logger.Info("indexed file", "path", path, "chunks", n)
		return nil
	})
	if err != nil {
		return st, err
	}

	st.Removed, err = s.prune(ctx, dir, seen)
	return st, err
}

// prune deletes sources under dir that are not in seen.
func (s *Store) prune(ctx context.Context, dir string, seen map[string]bool) (int, error) {
	sources, err := s.Sources(ctx)
	if err != nil {
		return 0, err
	}
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	removed := 0
	for _, src := range sources {
		if seen[src] || !strings.HasPrefix(src, prefix) {
			continue
		}
		if err := s.DeleteSource(ctx, src); err != nil {
			return removed, fmt.Errorf("remove %s: %w", src, err)
		}
		s.logger.Info("removed stale document", "path", src)
		removed++
	}
	return removed, nil
}

// EnsurePopulated indexes dir when the store is empty and returns the
// number of chunks added. A populated store or a missing directory is
// left alone.
func (s *Store) EnsurePopulated(ctx context.Context, dir string) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("document index already populated", "documents", n)
		return 0, nil
	}

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("document directory not found, search will return nothing", "dir", dir)
		return 0, nil
	}

	s.logger.Info("document index is empty, populating", "dir", dir)
	st, err := s.IndexDir(ctx, dir)
	if err != nil {
		return st.Chunks, err
	}
	return st.Chunks, nil
}
