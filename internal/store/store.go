// Package store implements the inspector's shared relational store
// (spec §3, §4.B): three tables — devices, hostnames, network_flows —
// behind a single reader/writer lock, embedded via modernc.org/sqlite.
//
// The store is the consistency boundary for the whole pipeline: every
// protocol handler and the ARP spoofer read or write through Store, never
// around it.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sqlite "modernc.org/sqlite"
)

//go:embed sql/schema.sql
var schemaSQL string

// VendorLookup resolves a MAC address to an OUI vendor string, or "" if
// unknown. It's registered into SQLite as the oui_vendor(mac) scalar
// function (spec §4.B) so handlers can patch metadata_json with a single
// UPDATE instead of a round trip through Go for every device row.
type VendorLookup func(mac string) string

// ouiFunc is the indirection the registered SQLite function calls
// through. It defaults to "no vendor known" until a Store supplies a real
// VendorLookup; every Open that is given a non-nil VendorLookup swaps it in
// (it is not re-registered), since modernc.org/sqlite only allows a scalar
// function name to be registered once per process.
var ouiFunc atomic.Pointer[VendorLookup]

func init() {
	noop := VendorLookup(func(string) string { return "" })
	ouiFunc.Store(&noop)
	_ = sqlite.RegisterScalarFunction("oui_vendor", 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 1 {
			return "", nil
		}
		mac, _ := args[0].(string)
		fn := *ouiFunc.Load()
		return fn(mac), nil
	})
}

// Store is the embedded relational cache described in spec §3/§4.B. The
// rw-lock is the "store lock" from the concurrency model (spec §5): any
// call sequence bracketed by Lock/Unlock (or RLock/RUnlock) is
// serializable with respect to every other Store caller.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open constructs the schema against dsn ("" or ":memory:" for an
// ephemeral in-process database, a file path for config.Config's debug
// mode) and wires vendor as the oui_vendor SQL function.
func Open(dsn string, vendor VendorLookup) (*Store, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	if vendor != nil {
		ouiFunc.Store(&vendor)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// The embedded driver does not support concurrent writers across
	// connections; the store's own rw-lock is the real serialization
	// point, but capping the pool avoids SQLITE_BUSY noise from the
	// driver trying to open a second connection underneath us.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lock/Unlock and RLock/RUnlock expose the store's rw-lock directly so
// handlers that need cross-statement atomicity (spec §5, "atomicity ...
// obtained by holding the lock across the sequence") can bracket several
// statements in one critical section.
func (s *Store) Lock()    { s.mu.Lock() }
func (s *Store) Unlock()  { s.mu.Unlock() }
func (s *Store) RLock()   { s.mu.RLock() }
func (s *Store) RUnlock() { s.mu.RUnlock() }

// DB exposes the underlying handle for call sites that only need a single
// autocommit statement; they must still hold the appropriate lock around
// the call (spec §4.B: "all writes are autocommit").
func (s *Store) DB() *sql.DB { return s.db }
