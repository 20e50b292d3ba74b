// Package modelregistry persists the binding between a model identifier
// and the content hash of the weights that produced a given index, and
// enforces that binding at the host boundary — never inside
// pkg/vpack.Index.Query. Model-identity enforcement is a host
// responsibility, not something the index's query path checks.
//
// Registry uses modernc.org/sqlite, a pure-Go driver, so the engine stays
// CGO-free end to end.
package modelregistry

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/vpackhq/vpack-go/internal/vpkerr"
)

// Registry records which model hash was pinned when a pack was built.
type Registry struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS model_bindings (
	pack_name  TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	model_hash TEXT NOT NULL
);
`

// Open opens (creating if necessary) a registry database at path. Pass ""
// for an in-memory registry, useful for tests and single-process hosts
// that don't need the binding to survive a restart.
func Open(path string) (*Registry, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else {
		dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("modelregistry: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			closeOnOpenFailure(db)
			return nil, fmt.Errorf("modelregistry: pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		closeOnOpenFailure(db)
		return nil, fmt.Errorf("modelregistry: create schema: %w", err)
	}

	return &Registry{db: db}, nil
}

// closeOnOpenFailure closes db after Open has already decided to fail for a
// different reason; a failure to close here is secondary and only logged,
// so the caller's original error is what reaches the caller.
func closeOnOpenFailure(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("modelregistry: failed to close database after open error", "error", err)
	}
}

// Close closes the underlying database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Bind records (or overwrites) the model and model-hash pinned for a pack,
// the bindings Verify checks a later Query call against.
func (r *Registry) Bind(packName, model, modelHash string) error {
	_, err := r.db.Exec(`
		INSERT INTO model_bindings (pack_name, model, model_hash)
		VALUES (?, ?, ?)
		ON CONFLICT(pack_name) DO UPDATE SET model = excluded.model, model_hash = excluded.model_hash
	`, packName, model, modelHash)
	if err != nil {
		return fmt.Errorf("modelregistry: bind: %w", err)
	}
	return nil
}

// Binding is the recorded model identity for a pack.
type Binding struct {
	Model     string
	ModelHash string
}

// Lookup returns the binding recorded for packName, if any.
func (r *Registry) Lookup(packName string) (Binding, bool, error) {
	var b Binding
	err := r.db.QueryRow(
		`SELECT model, model_hash FROM model_bindings WHERE pack_name = ?`, packName,
	).Scan(&b.Model, &b.ModelHash)
	if err == sql.ErrNoRows {
		return Binding{}, false, nil
	}
	if err != nil {
		return Binding{}, false, fmt.Errorf("modelregistry: lookup: %w", err)
	}
	return b, true, nil
}

// Verify checks a query-time (model, modelHash) pair against the binding
// recorded for packName, returning MODEL_MISMATCH if the model identifier
// differs, or MODEL_HASH_MISMATCH if the model matches but the local
// weights hash to something different than what was pinned at build time.
// An unbound packName passes verification — nothing to check against.
func (r *Registry) Verify(packName, model, modelHash string) error {
	binding, found, err := r.Lookup(packName)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if binding.Model != model {
		return vpkerr.ModelMismatch(binding.Model, model)
	}
	if binding.ModelHash != modelHash {
		return vpkerr.ModelHashMismatch(model, binding.ModelHash, modelHash)
	}
	return nil
}
