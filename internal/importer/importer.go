// Package importer loads backend export files from a directory into the
// workspace store.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/lattice/internal/checksum"
	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/state"
	"github.com/starford/lattice/internal/storage"
	"github.com/starford/lattice/internal/wire"
)

// EventCallback is called after a file has been imported.
type EventCallback func(path string, kinds []models.Kind)

// Importer imports *.json export files found in dir. Each file is imported
// again only when its checksum changes.
type Importer struct {
	dir    string
	db     storage.Provider
	store  *state.Store
	logger *slog.Logger

	// newID generates store ids; nil means random UUIDs.
	newID func() string
}

// New creates an importer for dir.
func New(dir string, db storage.Provider, store *state.Store, logger *slog.Logger) *Importer {
	return &Importer{dir: dir, db: db, store: store, logger: logger}
}

// Sync imports every new or changed export file in the directory, in name
// order.
func (im *Importer) Sync(ctx context.Context, cb EventCallback) error {
	var paths []string
	err := filepath.WalkDir(im.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isExport(path) {
			return nil
		}
		rel, relErr := filepath.Rel(im.dir, path)
		if relErr != nil {
			return nil
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("importer: walk: %w", err)
	}
	sort.Strings(paths)

	for _, p := range paths {
		kinds, imported, err := im.ImportFile(ctx, p)
		if err != nil {
			im.logger.Warn("sync: import failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		if imported && cb != nil {
			cb(p, kinds)
		}
	}
	return nil
}

// ImportFile imports one file (relative to the import directory) unless its
// checksum matches the last import. The entities of every kind present in
// the file replace the current entities of that kind.
func (im *Importer) ImportFile(ctx context.Context, rel string) ([]models.Kind, bool, error) {
	data, err := os.ReadFile(filepath.Join(im.dir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, false, fmt.Errorf("importer: read %s: %w", rel, err)
	}
	sum := checksum.Sum(data)

	known, err := im.db.ImportChecksums(ctx)
	if err != nil {
		return nil, false, err
	}
	if known[rel] == sum {
		im.logger.Debug("import: unchanged", slog.String("path", rel))
		return nil, false, nil
	}

	snap, err := wire.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("importer: %s: %w", rel, err)
	}
	remapped := wire.Remap(snap, im.newID)
	if len(remapped.Kinds) > 0 {
		if _, _, err := im.store.Dispatch(ctx, state.Replace{
			Folders: remapped.Folders,
			Items:   remapped.Items,
			Kinds:   remapped.Kinds,
		}); err != nil {
			return nil, false, fmt.Errorf("importer: apply %s: %w", rel, err)
		}
	}
	if err := im.db.RecordImport(ctx, rel, sum); err != nil {
		return nil, false, err
	}

	im.logger.Info("import: applied",
		slog.String("path", rel),
		slog.Int("folders", len(remapped.Folders)),
		slog.Int("items", len(remapped.Items)))
	return remapped.Kinds, true, nil
}

func isExport(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".json") && !strings.HasPrefix(base, ".")
}
