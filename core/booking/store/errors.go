package store

import "errors"

var (
	// ErrBuildQuery indicates SQL construction failed before reaching the database.
	ErrBuildQuery = errors.New("store: build query")

	// ErrExecQuery indicates the database rejected or failed a query.
	ErrExecQuery = errors.New("store: execute query")
)
