package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested row was not present.
var ErrNotFound = errors.New("not found")

func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
