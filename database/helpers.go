package database

import (
	"database/sql"
	"fmt"
)

// requireAffected finishes an UPDATE or DELETE keyed by id. Driver errors are
// mapped to the package sentinels, and a statement that touched no row means
// the record of the given kind does not exist.
func requireAffected(kind, id string, result sql.Result, err error) error {
	if err != nil {
		return translateError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
