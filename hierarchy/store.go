package hierarchy

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Store is a Resolver backed by an SQLite class table. It also keeps a
// table of verification verdicts keyed by method content hash, so unchanged
// methods need not be verified twice.
type Store struct {
	db   *sql.DB
	path string

	mu    sync.RWMutex
	cache map[string]*Class
}

// Verdict is a cached verification outcome.
type Verdict struct {
	OK      bool
	Kind    string // error category when !OK
	Message string
	Missing []string // classes assumed compatible, sorted
}

const schema = `
CREATE TABLE IF NOT EXISTS classes (
	name      TEXT PRIMARY KEY,
	super     TEXT NOT NULL,
	interface INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS interfaces (
	class    TEXT NOT NULL,
	iface    TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (class, position)
);
CREATE TABLE IF NOT EXISTS members (
	class      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	descriptor TEXT NOT NULL,
	static     INTEGER NOT NULL,
	position   INTEGER NOT NULL,
	PRIMARY KEY (class, kind, position)
);
CREATE TABLE IF NOT EXISTS results (
	hash    BLOB PRIMARY KEY,
	ok      INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	message TEXT NOT NULL,
	missing TEXT NOT NULL
);`

// Open opens (creating if needed) the class database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening class database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &Store{
		db:    db,
		path:  path,
		cache: make(map[string]*Class),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put writes a class definition, replacing any existing one, and drops
// all cached verdicts.
func (s *Store) Put(c *Class) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("saving class %s: %w", c.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO classes (name, super, interface) VALUES (?, ?, ?)",
		c.Name, c.Super, boolInt(c.Interface),
	); err != nil {
		return fmt.Errorf("saving class %s: %w", c.Name, err)
	}
	if _, err := tx.Exec("DELETE FROM interfaces WHERE class = ?", c.Name); err != nil {
		return fmt.Errorf("saving class %s: %w", c.Name, err)
	}
	if _, err := tx.Exec("DELETE FROM members WHERE class = ?", c.Name); err != nil {
		return fmt.Errorf("saving class %s: %w", c.Name, err)
	}
	for i, iface := range c.Interfaces {
		if _, err := tx.Exec(
			"INSERT INTO interfaces (class, iface, position) VALUES (?, ?, ?)",
			c.Name, iface, i,
		); err != nil {
			return fmt.Errorf("saving class %s: %w", c.Name, err)
		}
	}
	if err := insertMembers(tx, c.Name, "field", c.Fields); err != nil {
		return fmt.Errorf("saving class %s: %w", c.Name, err)
	}
	if err := insertMembers(tx, c.Name, "method", c.Methods); err != nil {
		return fmt.Errorf("saving class %s: %w", c.Name, err)
	}
	// Any cached verdict may depend on the old definition.
	if _, err := tx.Exec("DELETE FROM results"); err != nil {
		return fmt.Errorf("saving class %s: %w", c.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving class %s: %w", c.Name, err)
	}

	s.mu.Lock()
	delete(s.cache, c.Name)
	s.mu.Unlock()
	return nil
}

func insertMembers(tx *sql.Tx, class, kind string, ms []Member) error {
	for i, m := range ms {
		if _, err := tx.Exec(
			"INSERT INTO members (class, kind, name, descriptor, static, position) VALUES (?, ?, ?, ?, ?, ?)",
			class, kind, m.Name, m.Descriptor, boolInt(m.Static), i,
		); err != nil {
			return err
		}
	}
	return nil
}

// Lookup implements Resolver.
func (s *Store) Lookup(name string) (*Class, error) {
	s.mu.RLock()
	c, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	c = &Class{Name: name}
	var iface int
	err := s.db.QueryRow("SELECT super, interface FROM classes WHERE name = ?", name).Scan(&c.Super, &iface)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
		}
		return nil, fmt.Errorf("querying class %s: %w", name, err)
	}
	c.Interface = iface != 0

	rows, err := s.db.Query("SELECT iface FROM interfaces WHERE class = ? ORDER BY position", name)
	if err != nil {
		return nil, fmt.Errorf("querying interfaces of %s: %w", name, err)
	}
	for rows.Next() {
		var i string
		if err := rows.Scan(&i); err != nil {
			rows.Close()
			return nil, fmt.Errorf("querying interfaces of %s: %w", name, err)
		}
		c.Interfaces = append(c.Interfaces, i)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying interfaces of %s: %w", name, err)
	}

	rows, err = s.db.Query("SELECT kind, name, descriptor, static FROM members WHERE class = ? ORDER BY kind, position", name)
	if err != nil {
		return nil, fmt.Errorf("querying members of %s: %w", name, err)
	}
	for rows.Next() {
		var kind string
		var m Member
		var static int
		if err := rows.Scan(&kind, &m.Name, &m.Descriptor, &static); err != nil {
			rows.Close()
			return nil, fmt.Errorf("querying members of %s: %w", name, err)
		}
		m.Static = static != 0
		if kind == "field" {
			c.Fields = append(c.Fields, m)
		} else {
			c.Methods = append(c.Methods, m)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying members of %s: %w", name, err)
	}

	s.mu.Lock()
	s.cache[name] = c
	s.mu.Unlock()
	return c, nil
}

// RecordVerdict stores the verification outcome for a method content hash.
func (s *Store) RecordVerdict(hash [32]byte, v Verdict) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO results (hash, ok, kind, message, missing) VALUES (?, ?, ?, ?, ?)",
		hash[:], boolInt(v.OK), v.Kind, v.Message, strings.Join(v.Missing, " "),
	)
	if err != nil {
		return fmt.Errorf("saving verdict: %w", err)
	}
	return nil
}

// LookupVerdict returns the cached outcome for a method content hash.
func (s *Store) LookupVerdict(hash [32]byte) (Verdict, bool, error) {
	var v Verdict
	var ok int
	var missing string
	err := s.db.QueryRow("SELECT ok, kind, message, missing FROM results WHERE hash = ?", hash[:]).
		Scan(&ok, &v.Kind, &v.Message, &missing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Verdict{}, false, nil
		}
		return Verdict{}, false, fmt.Errorf("querying verdict: %w", err)
	}
	v.OK = ok != 0
	v.Missing = strings.Fields(missing)
	return v, true, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
