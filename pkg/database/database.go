// Package database is the persistence layer: player accounts in a single
// SQLite file. Lobby state (channels, games, who is online) is deliberately
// not stored; it dies with the process.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrUnknownAccount indicates no account exists for the username.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrWrongPassword indicates the password did not match.
	ErrWrongPassword = errors.New("wrong password")
	// ErrAccountExists indicates a registration hit an existing username.
	ErrAccountExists = errors.New("account already exists")
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// Open opens the SQLite database at the given path and brings the schema
// up to date.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Account traffic is login-time only; one writer connection with a
	// small idle pool covers it.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
