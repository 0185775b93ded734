// Package legacy upgrades data written by earlier releases of the app. Those
// releases stored membership, attendance and likes as plain counters in some
// places and id lists in others, kept plaintext passwords, and wrote some
// collections to <collection>.json files instead of the key-value store.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"schoolhub/internal/constants"
	"schoolhub/internal/models"
	"schoolhub/internal/store"
)

// Hasher turns a plaintext password into a stored hash.
type Hasher interface {
	Hash(password string) (string, error)
}

// Migrate rewrites every collection into the current document layout. It
// runs once: the schema version is recorded in the same transaction and later
// calls return immediately.
func Migrate(ctx context.Context, st *store.Store, hasher Hasher) error {
	var version int
	if _, err := st.KV().Get(ctx, constants.KeySchemaVersion, &version); err != nil {
		return err
	}
	if version >= constants.SchemaVersion {
		return nil
	}

	err := st.Update(ctx, func(tx *store.Tx) error {
		c, err := loadAll(tx)
		if err != nil {
			return err
		}
		if err := normalizeAll(c, hasher); err != nil {
			return err
		}
		if err := stageAll(tx, c); err != nil {
			return err
		}
		if err := scrubSession(tx); err != nil {
			return err
		}
		return tx.SetKey(constants.KeySchemaVersion, constants.SchemaVersion)
	}, store.All...)
	if err != nil {
		return fmt.Errorf("migrating to schema version %d: %w", constants.SchemaVersion, err)
	}

	slog.Info("migrated stored documents", "component", "legacy", "from", version, "to", constants.SchemaVersion)
	return nil
}

// Import loads <collection>.json files found in dir into collections that
// are still empty, then normalizes everything. Import runs at most once per
// database; it returns the collections that were imported.
func Import(ctx context.Context, st *store.Store, dir string, hasher Hasher) ([]store.Name, error) {
	if dir == "" {
		return nil, nil
	}

	var done bool
	if _, err := st.KV().Get(ctx, constants.KeyLegacyImport, &done); err != nil {
		return nil, err
	}
	if done {
		return nil, nil
	}

	files, err := readFiles(dir)
	if err != nil {
		return nil, err
	}

	var imported []store.Name
	err = st.Update(ctx, func(tx *store.Tx) error {
		c, err := loadAll(tx)
		if err != nil {
			return err
		}

		imported = imported[:0]
		for _, name := range store.All {
			docs, ok := files[name]
			if !ok {
				continue
			}
			if len(c[name]) > 0 {
				slog.Warn("collection already has documents, skipping legacy file", "component", "legacy", "collection", name)
				continue
			}
			c[name] = docs
			imported = append(imported, name)
		}

		if err := normalizeAll(c, hasher); err != nil {
			return err
		}
		if err := stageAll(tx, c); err != nil {
			return err
		}
		if err := scrubSession(tx); err != nil {
			return err
		}
		if err := tx.SetKey(constants.KeySchemaVersion, constants.SchemaVersion); err != nil {
			return err
		}
		return tx.SetKey(constants.KeyLegacyImport, true)
	}, store.All...)
	if err != nil {
		return nil, fmt.Errorf("importing legacy files from %s: %w", dir, err)
	}

	if len(imported) > 0 {
		slog.Info("imported legacy collections", "component", "legacy", "dir", dir, "collections", imported)
	}
	return imported, nil
}

// readFiles decodes the legacy file of each collection. Missing files are
// skipped; a file that is not a JSON array is logged and skipped.
func readFiles(dir string) (map[store.Name][]doc, error) {
	files := make(map[store.Name][]doc)
	for _, name := range store.All {
		path := filepath.Join(dir, string(name)+".json")
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		var items []any
		if err := json.Unmarshal(data, &items); err != nil || items == nil {
			slog.Warn("legacy file is not a JSON array, skipping", "component", "legacy", "path", path, "error", err)
			continue
		}
		files[name] = docList(items)
	}
	return files, nil
}

func loadAll(tx *store.Tx) (collections, error) {
	c := make(collections, len(store.All))
	for _, name := range store.All {
		var items []any
		if err := tx.Load(name, &items); err != nil {
			return nil, err
		}
		c[name] = docList(items)
	}
	return c, nil
}

// scrubSession rewrites the session snapshot as a profile. Older releases
// cached the whole user record there, password included.
func scrubSession(tx *store.Tx) error {
	var session map[string]any
	found, err := tx.GetKey(constants.KeyCurrentUser, &session)
	if err != nil || !found {
		// An unreadable snapshot is cleared by the auth manager on next read.
		return nil
	}
	if _, ok := session["password"]; !ok {
		return nil
	}

	var profile models.Profile
	data, _ := json.Marshal(session)
	if err := json.Unmarshal(data, &profile); err != nil || profile.ID == "" {
		return tx.RemoveKey(constants.KeyCurrentUser)
	}
	return tx.SetKey(constants.KeyCurrentUser, &profile)
}

func stageAll(tx *store.Tx, c collections) error {
	for _, name := range store.All {
		if err := tx.Stage(name, c[name]); err != nil {
			return err
		}
	}
	return nil
}
