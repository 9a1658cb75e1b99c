package acousticdup

import (
	"github.com/himanishpuri/acousticdup/pkg/acousticdup/storage"
)

var _ Storage = (*storage.DBClient)(nil)

// NewSQLiteStorage opens (creating if needed) the SQLite database at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}
