package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"appframe/internal/model"

	_ "modernc.org/sqlite"
)

// parseJSONHeaders safely parses JSON headers, returning an empty map on error
func parseJSONHeaders(jsonStr string) (map[string]string, error) {
	if jsonStr == "" {
		return make(map[string]string), nil
	}

	var headers map[string]string
	if err := json.Unmarshal([]byte(jsonStr), &headers); err != nil {
		return make(map[string]string), fmt.Errorf("failed to parse headers JSON: %w", err)
	}

	if headers == nil {
		headers = make(map[string]string)
	}
	return headers, nil
}

const (
	dbFile = "appframe.db"

	// historyLimit caps the number of kept history entries
	historyLimit = 100

	// Secure file permissions - owner read/write only
	secureFileMode = 0600 // -rw-------
	secureDirMode  = 0700 // drwx------
)

// DefaultDataDir returns ~/.appframe
func DefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".appframe"), nil
}

// ensureSecureFile creates a file with secure permissions if it doesn't exist,
// or verifies/fixes permissions if it does exist. This prevents a TOCTOU race
// condition where the file could be created with insecure default permissions.
func ensureSecureFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, secureFileMode)
		if err != nil {
			return fmt.Errorf("failed to create secure file: %w", err)
		}
		f.Close()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Mode().Perm() != secureFileMode {
		if err := os.Chmod(path, secureFileMode); err != nil {
			return fmt.Errorf("failed to set secure permissions: %w", err)
		}
	}
	return nil
}

// SQLiteStorage handles SQLite database persistence
type SQLiteStorage struct {
	db      *sql.DB
	dataDir string
}

// NewStorage opens (creating if needed) the database in dataDir.
// An empty dataDir uses DefaultDataDir.
func NewStorage(dataDir string) (*SQLiteStorage, error) {
	if dataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}
	if err := os.MkdirAll(dataDir, secureDirMode); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, dbFile)

	// Create database file with secure permissions if it doesn't exist
	if err := ensureSecureFile(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStorage{db: db, dataDir: dataDir}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.migrateFromJSON(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// DataDir returns the directory holding the database
func (s *SQLiteStorage) DataDir() string {
	return s.dataDir
}

// initSchema creates the database tables if they don't exist
func (s *SQLiteStorage) initSchema() error {
	schema := `
	-- Properties table (string key/value pairs, e.g. <app id>.status)
	CREATE TABLE IF NOT EXISTS properties (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- History table (stores Request + embedded Response)
	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		method TEXT NOT NULL,
		url TEXT NOT NULL,
		headers TEXT DEFAULT '{}',
		body TEXT DEFAULT '',
		response_status_code INTEGER,
		response_status TEXT,
		response_headers TEXT,
		response_body TEXT,
		response_duration_ms INTEGER,
		response_error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Property Operations
// =============================================================================

// GetString returns the value stored under key
func (s *SQLiteStorage) GetString(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM properties WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetString stores value under key, replacing any previous value
func (s *SQLiteStorage) SetString(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO properties (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// DeleteString removes key
func (s *SQLiteStorage) DeleteString(key string) error {
	_, err := s.db.Exec("DELETE FROM properties WHERE key = ?", key)
	return err
}

// LoadProperties loads every property
func (s *SQLiteStorage) LoadProperties() (*model.Properties, error) {
	props := &model.Properties{Values: make(map[string]string)}

	rows, err := s.db.Query("SELECT key, value FROM properties")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		props.Values[key] = value
	}

	return props, rows.Err()
}

// =============================================================================
// History Operations
// =============================================================================

const historyColumns = `id, timestamp, method, url, headers, body,
		       response_status_code, response_status, response_headers,
		       response_body, response_duration_ms, response_error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistoryRequest(row rowScanner) (model.Request, error) {
	var req model.Request
	var headersJSON string
	var respStatusCode, respDurationMs sql.NullInt64
	var respStatus, respHeaders, respBody, respError sql.NullString

	err := row.Scan(
		&req.ID, &req.Timestamp, &req.Method, &req.URL,
		&headersJSON, &req.Body,
		&respStatusCode, &respStatus, &respHeaders,
		&respBody, &respDurationMs, &respError,
	)
	if err != nil {
		return req, err
	}

	// Parse headers JSON (errors don't fail the operation)
	req.Headers, _ = parseJSONHeaders(headersJSON)

	// Build response if present
	if respStatusCode.Valid {
		req.Response = &model.Response{
			StatusCode: int(respStatusCode.Int64),
			Status:     respStatus.String,
			Body:       respBody.String,
			DurationMs: respDurationMs.Int64,
			Error:      respError.String,
		}
		if respHeaders.Valid {
			req.Response.Headers, _ = parseJSONHeaders(respHeaders.String)
		} else {
			req.Response.Headers = make(map[string]string)
		}
	}

	return req, nil
}

// LoadHistory loads the request history from the database
func (s *SQLiteStorage) LoadHistory() (*model.History, error) {
	rows, err := s.db.Query(`
		SELECT `+historyColumns+`
		FROM history
		ORDER BY timestamp DESC
		LIMIT ?`, historyLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := &model.History{Requests: []model.Request{}}

	for rows.Next() {
		req, err := scanHistoryRequest(rows)
		if err != nil {
			return nil, err
		}
		history.Requests = append(history.Requests, req)
	}

	return history, rows.Err()
}

// AddToHistory adds a request to history
func (s *SQLiteStorage) AddToHistory(req model.Request) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertHistoryRequest(tx, req); err != nil {
		return err
	}

	// Enforce the history limit by deleting oldest entries
	_, err = tx.Exec(`
		DELETE FROM history
		WHERE id NOT IN (
			SELECT id FROM history ORDER BY timestamp DESC LIMIT ?
		)`, historyLimit)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// insertHistoryRequest is a helper to insert a request into history
func insertHistoryRequest(tx *sql.Tx, req model.Request) error {
	headersJSON, _ := json.Marshal(req.Headers)

	var respStatusCode, respDurationMs sql.NullInt64
	var respStatus, respHeaders, respBody, respError sql.NullString

	if req.Response != nil {
		respStatusCode = sql.NullInt64{Int64: int64(req.Response.StatusCode), Valid: true}
		respStatus = sql.NullString{String: req.Response.Status, Valid: true}
		respHeadersJSON, _ := json.Marshal(req.Response.Headers)
		respHeaders = sql.NullString{String: string(respHeadersJSON), Valid: true}
		respBody = sql.NullString{String: req.Response.Body, Valid: true}
		respDurationMs = sql.NullInt64{Int64: req.Response.DurationMs, Valid: true}
		respError = sql.NullString{String: req.Response.Error, Valid: req.Response.Error != ""}
	}

	_, err := tx.Exec(`
		INSERT OR REPLACE INTO history (
			id, timestamp, method, url, headers, body,
			response_status_code, response_status, response_headers,
			response_body, response_duration_ms, response_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Timestamp, req.Method, req.URL, string(headersJSON), req.Body,
		respStatusCode, respStatus, respHeaders, respBody, respDurationMs, respError,
	)
	return err
}

// ClearHistory clears all history
func (s *SQLiteStorage) ClearHistory() error {
	_, err := s.db.Exec("DELETE FROM history")
	return err
}

// GetHistoryRequest gets a specific request by ID
func (s *SQLiteStorage) GetHistoryRequest(id string) (*model.Request, error) {
	row := s.db.QueryRow(`
		SELECT `+historyColumns+`
		FROM history
		WHERE id = ?`, id)

	req, err := scanHistoryRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// =============================================================================
// Migration from JSON
// =============================================================================

// migrateFromJSON imports history.json and properties.json into an empty
// database. Each file is imported in one transaction and renamed to
// .migrated only after that transaction commits.
func (s *SQLiteStorage) migrateFromJSON() error {
	for _, table := range []string{"history", "properties"} {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		if count > 0 {
			return nil
		}
	}

	historyPath := filepath.Join(s.dataDir, historyFile)
	if data, err := os.ReadFile(historyPath); err == nil {
		var history model.History
		if json.Unmarshal(data, &history) == nil && len(history.Requests) > 0 {
			err := s.inTx(func(tx *sql.Tx) error {
				for _, req := range history.Requests {
					if err := insertHistoryRequest(tx, req); err != nil {
						return err
					}
				}
				_, err := tx.Exec(`
					DELETE FROM history
					WHERE id NOT IN (
						SELECT id FROM history ORDER BY timestamp DESC LIMIT ?
					)`, historyLimit)
				return err
			})
			if err != nil {
				return fmt.Errorf("migrate history: %w", err)
			}
			if err := os.Rename(historyPath, historyPath+".migrated"); err != nil {
				return fmt.Errorf("rename history file: %w", err)
			}
		}
	}

	propertiesPath := filepath.Join(s.dataDir, propertiesFile)
	if data, err := os.ReadFile(propertiesPath); err == nil {
		var props model.Properties
		if json.Unmarshal(data, &props) == nil && len(props.Values) > 0 {
			err := s.inTx(func(tx *sql.Tx) error {
				for key, value := range props.Values {
					if _, err := tx.Exec(`
						INSERT INTO properties (key, value) VALUES (?, ?)
						ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
						key, value); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("migrate properties: %w", err)
			}
			if err := os.Rename(propertiesPath, propertiesPath+".migrated"); err != nil {
				return fmt.Errorf("rename properties file: %w", err)
			}
		}
	}

	return nil
}

func (s *SQLiteStorage) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
