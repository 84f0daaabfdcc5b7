package index

import (
	"log/slog"

	"github.com/starford/tomatxt/internal/checksum"
	"github.com/starford/tomatxt/internal/parser"
	"github.com/starford/tomatxt/internal/storage"
)

// Sync walks the notes directory and brings the index up to date:
//   - new/changed note files are parsed and their trees upserted
//   - trees whose file is gone are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.RootChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		id, ok := storage.IDFromPath(m.Path)
		if !ok {
			continue
		}
		disk[id] = struct{}{}

		if !checksum.Changed(checksums[id], m.Checksum) {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		root, err := parser.Parse(data, "")
		if err != nil {
			logger.Warn("sync: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := db.UpsertTree(root); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteTree(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("root_id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("root_id", id))
			}
		}
	}

	return nil
}
