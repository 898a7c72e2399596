package storage

import (
	_ "modernc.org/sqlite"
)

// SQLiteStore is a file-backed store using the pure Go modernc driver.
type SQLiteStore struct {
	sqlStore
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{sqlStore: sqlStore{
		dialect: dialect{driver: "sqlite", blobType: "BLOB", maxOpenConns: 1},
		dsn:     path,
	}}
}

var _ Store = (*SQLiteStore)(nil)
