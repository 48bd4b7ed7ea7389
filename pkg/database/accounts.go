package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Authenticate checks a username/password pair. When create is set and no
// account exists, one is registered with the given password instead.
// Usernames compare case-insensitively but keep the case they were
// registered with.
func (db *DB) Authenticate(username, password string, create bool) error {
	var hash string
	err := db.conn.QueryRow(
		`SELECT password_hash FROM accounts WHERE username = ?`,
		username,
	).Scan(&hash)

	if errors.Is(err, sql.ErrNoRows) {
		if !create {
			return ErrUnknownAccount
		}
		return db.createAccount(username, password)
	}
	if err != nil {
		return fmt.Errorf("account lookup failed: %w", err)
	}
	if create {
		return ErrAccountExists
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrWrongPassword
	}

	// Best effort; a login must not fail over bookkeeping.
	db.conn.Exec(
		`UPDATE accounts SET last_login = ? WHERE username = ?`,
		time.Now().UnixMilli(), username,
	)
	return nil
}

func (db *DB) createAccount(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT INTO accounts (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, string(hash), time.Now().UnixMilli(),
	)
	if err != nil {
		// Lost a race against a concurrent registration for the same name.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// CountAccounts returns the total number of registered accounts.
func (db *DB) CountAccounts() (uint32, error) {
	var count uint32
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("account count failed: %w", err)
	}
	return count, nil
}
