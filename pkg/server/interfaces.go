package server

import "github.com/ienet/earthnet/pkg/database"

// Account errors an Authenticator may return. The handshake maps them to
// reject reasons; anything else is treated as an internal failure. They
// alias the database package's sentinels so stores built elsewhere can
// reuse them without importing this package.
var (
	ErrUnknownAccount = database.ErrUnknownAccount
	ErrWrongPassword  = database.ErrWrongPassword
	ErrAccountExists  = database.ErrAccountExists
)

// Authenticator verifies login credentials during the handshake. When
// create is set the caller wants a new account registered with the given
// password; stores that don't support registration return ErrUnknownAccount.
type Authenticator interface {
	Authenticate(username, password string, create bool) error
}

// AccountStore is the full persistence surface the server needs: credential
// checks plus the total account count reported in ServerWelcome and
// /syncstats.
type AccountStore interface {
	Authenticator
	CountAccounts() (uint32, error)
}
