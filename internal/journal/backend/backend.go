// Package backend opens a journal.Backend by driver name.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/FranksOps/shopscrape/internal/journal"
	"github.com/FranksOps/shopscrape/internal/journal/jsonbackend"
	"github.com/FranksOps/shopscrape/internal/journal/postgres"
	"github.com/FranksOps/shopscrape/internal/journal/sqlite"
)

const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverJSON     = "json"
)

// ErrUnknownDriver is returned for driver names Open does not know.
var ErrUnknownDriver = errors.New("journal: unknown driver")

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverNone, DriverSQLite, DriverPostgres, DriverJSON}
}

// Open returns the backend for driver. DriverNone and the empty string
// return a nil backend, meaning attempts are not journaled.
func Open(ctx context.Context, driver, dsn string) (journal.Backend, error) {
	switch driver {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite, DriverPostgres, DriverJSON:
		if dsn == "" {
			return nil, fmt.Errorf("journal: %s driver requires a dsn", driver)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	switch driver {
	case DriverSQLite:
		return sqlite.New(dsn)
	case DriverPostgres:
		return postgres.New(ctx, dsn)
	default:
		return jsonbackend.New(dsn)
	}
}
