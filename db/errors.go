package db

import (
	"strings"

	"github.com/teranos/tcgbot/errors"
)

// ErrDatabaseClosed is returned when the ledger is written after shutdown
// closed the database
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed matches ErrDatabaseClosed and the driver's own
// "database is closed" errors, which cannot be wrapped at the source
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
