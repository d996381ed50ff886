package store

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"modernc.org/sqlite"
)

// SQLite's built-in lower() only folds ASCII, so "Padmé" and "PADMÉ" would
// not compare equal. ulower folds the full Unicode range.
const sqliteLowerFunc = "ulower"

var (
	registerOnce sync.Once
	registerErr  error
)

// registerSQLiteFunctions installs the custom scalars on the driver. It must
// run before the first connection is opened.
func registerSQLiteFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction(sqliteLowerFunc, 1, unicodeLower)
	})
	return registerErr
}

func unicodeLower(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T", sqliteLowerFunc, v)
	}
}

// Lower wraps expr in the dialect's Unicode-aware lowercase function.
func (d *DB) Lower(expr string) string {
	if d.Dialect == DialectSQLite {
		return sqliteLowerFunc + "(" + expr + ")"
	}
	return "lower(" + expr + ")"
}
