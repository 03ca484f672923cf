package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// AccountStorage persists provider account credentials in SQLite so
// accounts can be managed at runtime instead of only through .env.
type AccountStorage struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewAccountStorage opens the account database and prepares the schema.
func NewAccountStorage(dbPath string) (*AccountStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	storage := &AccountStorage{
		db:   db,
		path: dbPath,
	}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := storage.applyPragmas(); err != nil {
		log.Printf("Warning: Failed to apply optimizations: %v", err)
	}

	return storage, nil
}

func (s *AccountStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS provider_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_name TEXT NOT NULL,
		account_id TEXT NOT NULL,
		credentials TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(provider_name, account_id)
	);

	CREATE INDEX IF NOT EXISTS idx_provider_account ON provider_accounts(provider_name, account_id);

	CREATE TRIGGER IF NOT EXISTS update_provider_accounts_updated_at
		AFTER UPDATE ON provider_accounts
	BEGIN
		UPDATE provider_accounts SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;
	`

	_, err := s.db.Exec(query)
	return err
}

// applyPragmas tunes SQLite for concurrent access from multiple replicas.
func (s *AccountStorage) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA cache_size = 1000;",
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA temp_store = memory;",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			log.Printf("Warning: Failed to execute %s: %v", pragma, err)
		}
	}

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}

	return nil
}

// retryOperation retries a database operation while SQLite reports the
// file as locked by another process.
func (s *AccountStorage) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// SaveAccount inserts or updates the credential set of a provider account.
func (s *AccountStorage) SaveAccount(providerName, accountID string, credentials map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(credentials)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	return s.retryOperation(func() error {
		query := `
		INSERT INTO provider_accounts (provider_name, account_id, credentials, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(provider_name, account_id)
		DO UPDATE SET
			credentials = excluded.credentials,
			updated_at = CURRENT_TIMESTAMP
		`

		if _, err := s.db.Exec(query, providerName, accountID, string(data)); err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}

		return nil
	}, 3)
}

// LoadAccount returns the stored credentials of a provider account.
func (s *AccountStorage) LoadAccount(providerName, accountID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var credentials map[string]string
	err := s.retryOperation(func() error {
		query := `
		SELECT credentials
		FROM provider_accounts
		WHERE provider_name = ? AND account_id = ?
		`

		var data string
		err := s.db.QueryRow(query, providerName, accountID).Scan(&data)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("no account found for provider: %s, account: %s", providerName, accountID)
			}
			return fmt.Errorf("failed to load account: %w", err)
		}

		if err := json.Unmarshal([]byte(data), &credentials); err != nil {
			return fmt.Errorf("failed to unmarshal credentials: %w", err)
		}

		return nil
	}, 3)

	return credentials, err
}

// LoadAllAccounts returns every stored account keyed by
// "provider_accountID".
func (s *AccountStorage) LoadAllAccounts() (map[string]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts map[string]map[string]string
	err := s.retryOperation(func() error {
		query := `
		SELECT provider_name, account_id, credentials
		FROM provider_accounts
		ORDER BY provider_name, account_id
		`

		rows, err := s.db.Query(query)
		if err != nil {
			return fmt.Errorf("failed to query accounts: %w", err)
		}
		defer rows.Close()

		accounts = make(map[string]map[string]string)

		for rows.Next() {
			var providerName, accountID, data string
			if err := rows.Scan(&providerName, &accountID, &data); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}

			var credentials map[string]string
			if err := json.Unmarshal([]byte(data), &credentials); err != nil {
				log.Printf("Warning: failed to unmarshal credentials for %s/%s: %v", providerName, accountID, err)
				continue
			}

			accounts[providerName+"_"+accountID] = credentials
		}

		return rows.Err()
	}, 3)

	if err != nil {
		return nil, err
	}

	return accounts, nil
}

// DeleteAccount removes a provider account.
func (s *AccountStorage) DeleteAccount(providerName, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retryOperation(func() error {
		query := `
		DELETE FROM provider_accounts
		WHERE provider_name = ? AND account_id = ?
		`

		result, err := s.db.Exec(query, providerName, accountID)
		if err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rowsAffected == 0 {
			return fmt.Errorf("no account found for provider: %s, account: %s", providerName, accountID)
		}

		return nil
	}, 3)
}

// AccountIDs returns the account IDs stored for a provider.
func (s *AccountStorage) AccountIDs(providerName string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	SELECT DISTINCT account_id
	FROM provider_accounts
	WHERE provider_name = ?
	ORDER BY account_id
	`

	rows, err := s.db.Query(query, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts by provider: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var accountID string
		if err := rows.Scan(&accountID); err != nil {
			return nil, fmt.Errorf("failed to scan account ID: %w", err)
		}
		ids = append(ids, accountID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	return ids, nil
}

// Close closes the database connection.
func (s *AccountStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetStats returns database statistics.
func (s *AccountStorage) GetStats() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]any)

	var totalAccounts int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM provider_accounts").Scan(&totalAccounts); err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	stats["total_accounts"] = totalAccounts

	var uniqueProviders int
	if err := s.db.QueryRow("SELECT COUNT(DISTINCT provider_name) FROM provider_accounts").Scan(&uniqueProviders); err != nil {
		return nil, fmt.Errorf("failed to count providers: %w", err)
	}
	stats["unique_providers"] = uniqueProviders

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats["db_size_bytes"] = fileInfo.Size()
	}

	stats["db_path"] = s.path

	return stats, nil
}
