package store

import (
	"database/sql"
	"fmt"

	"github.com/matheus3301/phonecontact/internal/bus"
	"github.com/matheus3301/phonecontact/internal/domain"
	"github.com/mattn/go-sqlite3"
)

// driverName is go-sqlite3 with the fold(text) SQL function registered on
// every connection.
const driverName = "sqlite3_phonecontact"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", domain.FoldCase, true)
		},
	})
}

// DB wraps the SQLite database that holds the local contact cache.
// Every successful write publishes a store.* event on the bus so live
// queries can re-run.
type DB struct {
	*sql.DB
	bus *bus.Bus
}

// Change is the payload of store.* events.
type Change struct {
	Op  string
	IDs []string
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
// b may be nil, in which case writes are not announced.
func Open(path string, b *bus.Bus) (*DB, error) {
	db, err := sql.Open(driverName, path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, bus: b}, nil
}

// Bus returns the bus writes are announced on.
func (db *DB) Bus() *bus.Bus {
	return db.bus
}

func (db *DB) changed(kind, op string, ids ...string) {
	db.bus.Publish(bus.NewEvent(kind, Change{Op: op, IDs: ids}))
}
