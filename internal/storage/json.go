package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"appframe/internal/model"
)

const (
	historyFile    = "history.json"
	propertiesFile = "properties.json"

	// Secure file permissions - owner read/write only
	jsonSecureFileMode = 0600 // -rw-------
	jsonSecureDirMode  = 0700 // drwx------
)

// JSONStorage handles JSON file persistence
type JSONStorage struct {
	mu      sync.Mutex
	dataDir string
}

// NewJSONStorage creates a JSON storage instance in dataDir.
// An empty dataDir uses DefaultDataDir.
func NewJSONStorage(dataDir string) (*JSONStorage, error) {
	if dataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}
	if err := os.MkdirAll(dataDir, jsonSecureDirMode); err != nil {
		return nil, err
	}

	return &JSONStorage{dataDir: dataDir}, nil
}

// Close is a no-op; every operation opens and closes its own file.
func (s *JSONStorage) Close() error {
	return nil
}

// historyPath returns the path to the history file
func (s *JSONStorage) historyPath() string {
	return filepath.Join(s.dataDir, historyFile)
}

// propertiesPath returns the path to the properties file
func (s *JSONStorage) propertiesPath() string {
	return filepath.Join(s.dataDir, propertiesFile)
}

// LoadProperties loads every property from disk
func (s *JSONStorage) LoadProperties() (*model.Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadProperties()
}

func (s *JSONStorage) loadProperties() (*model.Properties, error) {
	props := &model.Properties{Values: make(map[string]string)}

	data, err := os.ReadFile(s.propertiesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return props, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, props); err != nil {
		return nil, err
	}
	if props.Values == nil {
		props.Values = make(map[string]string)
	}

	return props, nil
}

func (s *JSONStorage) saveProperties(props *model.Properties) error {
	data, err := json.MarshalIndent(props, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.propertiesPath(), data, jsonSecureFileMode)
}

// GetString returns the value stored under key
func (s *JSONStorage) GetString(key string) (string, bool, error) {
	props, err := s.LoadProperties()
	if err != nil {
		return "", false, err
	}

	value, exists := props.Values[key]
	return value, exists, nil
}

// SetString stores value under key
func (s *JSONStorage) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	props, err := s.loadProperties()
	if err != nil {
		return err
	}

	props.Values[key] = value

	return s.saveProperties(props)
}

// DeleteString removes key
func (s *JSONStorage) DeleteString(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	props, err := s.loadProperties()
	if err != nil {
		return err
	}

	delete(props.Values, key)

	return s.saveProperties(props)
}

// LoadHistory loads the request history from disk
func (s *JSONStorage) LoadHistory() (*model.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadHistory()
}

func (s *JSONStorage) loadHistory() (*model.History, error) {
	history := &model.History{Requests: []model.Request{}}

	data, err := os.ReadFile(s.historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return history, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, history); err != nil {
		return nil, err
	}

	return history, nil
}

func (s *JSONStorage) saveHistory(history *model.History) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.historyPath(), data, jsonSecureFileMode)
}

// AddToHistory adds a request to history
func (s *JSONStorage) AddToHistory(req model.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadHistory()
	if err != nil {
		return err
	}

	// Prepend new request (most recent first)
	history.Requests = append([]model.Request{req}, history.Requests...)

	if len(history.Requests) > historyLimit {
		history.Requests = history.Requests[:historyLimit]
	}

	return s.saveHistory(history)
}

// ClearHistory clears all history
func (s *JSONStorage) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveHistory(&model.History{Requests: []model.Request{}})
}

// GetHistoryRequest gets a specific request by ID
func (s *JSONStorage) GetHistoryRequest(id string) (*model.Request, error) {
	history, err := s.LoadHistory()
	if err != nil {
		return nil, err
	}

	for _, req := range history.Requests {
		if req.ID == id {
			return &req, nil
		}
	}

	return nil, nil
}
