// Package store persists instance snapshots in SQLite. It is a thin
// durable layer over the snapshot wire form: the object model itself
// keeps no instance table, so what to save and when is entirely the
// caller's decision.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/genera/model"
	"github.com/chazu/genera/snapshot"
)

// ErrInstanceNotFound indicates the requested instance doesn't exist.
var ErrInstanceNotFound = errors.New("instance not found")

// Store handles SQLite storage for instance snapshots.
type Store struct {
	db  *sql.DB
	reg *model.Registry
	mu  sync.Mutex
	log commonlog.Logger
}

// Open opens (creating if needed) a store at the given path. Loads
// resolve classes and re-run validators against the supplied registry.
func Open(path string, reg *model.Registry) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		data BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{
		db:  db,
		reg: reg,
		log: commonlog.GetLogger("genera.store"),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save persists an instance snapshot. Last write wins per instance ID.
func (s *Store) Save(inst *model.Instance) error {
	img, err := snapshot.CaptureInstance(inst)
	if err != nil {
		return err
	}
	data, err := snapshot.MarshalInstance(img)
	if err != nil {
		return fmt.Errorf("encoding instance: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		"INSERT OR REPLACE INTO instances (id, class, data) VALUES (?, ?, ?)",
		img.ID, img.Class, data,
	); err != nil {
		return fmt.Errorf("saving instance: %w", err)
	}
	return nil
}

// Load retrieves an instance by ID and rebuilds it through the
// registry, re-running type checks and validators.
func (s *Store) Load(id string) (*model.Instance, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM instances WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("querying instance: %w", err)
	}

	img, err := snapshot.UnmarshalInstance(data)
	if err != nil {
		return nil, err
	}
	return snapshot.RestoreInstance(img, s.reg)
}

// Delete removes an instance from the store.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM instances WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting instance: %w", err)
	}
	return nil
}

// FindByClass returns all stored instance IDs for a given class name.
// Matching is on the class the instance was saved as, not its ancestry.
func (s *Store) FindByClass(className string) ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM instances WHERE class = ? ORDER BY id", className)
	if err != nil {
		return nil, fmt.Errorf("querying by class: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveAll persists a batch of instances, stopping at the first failure.
func (s *Store) SaveAll(instances []*model.Instance) error {
	for _, inst := range instances {
		if err := s.Save(inst); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll rebuilds every stored instance. Instances whose class is no
// longer registered, or that fail re-validation, are logged and
// skipped rather than aborting the whole load.
func (s *Store) LoadAll() ([]*model.Instance, error) {
	rows, err := s.db.Query("SELECT id, data FROM instances ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying all instances: %w", err)
	}
	defer rows.Close()

	var out []*model.Instance
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning instance: %w", err)
		}

		img, err := snapshot.UnmarshalInstance(data)
		if err != nil {
			s.log.Warningf("skipping instance %s: %v", id, err)
			continue
		}
		inst, err := snapshot.RestoreInstance(img, s.reg)
		if err != nil {
			s.log.Warningf("skipping instance %s: %v", id, err)
			continue
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// Count returns the number of stored instances.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM instances").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting instances: %w", err)
	}
	return n, nil
}
