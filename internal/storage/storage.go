// Package storage persists string properties and request history, either in a
// SQLite database or in JSON files under the data directory.
package storage

import (
	"fmt"

	"appframe/internal/model"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Store is implemented by SQLiteStorage and JSONStorage.
type Store interface {
	GetString(key string) (string, bool, error)
	SetString(key, value string) error
	DeleteString(key string) error
	LoadProperties() (*model.Properties, error)

	LoadHistory() (*model.History, error)
	AddToHistory(req model.Request) error
	ClearHistory() error
	GetHistoryRequest(id string) (*model.Request, error)

	Close() error
}

var (
	_ Store = (*SQLiteStorage)(nil)
	_ Store = (*JSONStorage)(nil)
)

// Open returns the store for backend rooted at dataDir. An empty backend
// selects SQLite.
func Open(backend, dataDir string) (Store, error) {
	switch backend {
	case "", BackendSQLite:
		s, err := NewStorage(dataDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendJSON:
		s, err := NewJSONStorage(dataDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
