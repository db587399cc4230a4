// Package memorystorage is the non-persistent storage used when neither a
// database DSN nor a storage file is configured.
package memorystorage

import (
	"github.com/patric-chuzhbe/blogshelf/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewWithCache("", jsondb.NewCache()),
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}
