// Package database owns the Postgres connection and the application schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// urlEnvKeys are checked in order. AVA_DATABASE_URL wins so an Ava instance
// can share an environment with other services that set DATABASE_URL.
var urlEnvKeys = []string{"AVA_DATABASE_URL", "DATABASE_URL"}

// NewDB opens the Postgres pool and verifies the connection. The pool is
// sized for a single-instance deployment; river runs its own pgx pool.
func NewDB() (*sql.DB, error) {
	dbURL, err := LoadDatabaseURL()
	if err != nil {
		return nil, fmt.Errorf("failed to get database URL: %w", err)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return db, nil
}

// LoadDatabaseURL resolves the connection string from the environment, or
// from a .env file found by walking up from the working directory.
func LoadDatabaseURL() (string, error) {
	for _, key := range urlEnvKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, nil
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	envPath, ok := findEnvFile(wd)
	if !ok {
		return "", fmt.Errorf("no database URL: set AVA_DATABASE_URL or put it in a .env (searched from %s)", wd)
	}

	vars, err := parseEnvFile(envPath)
	if err != nil {
		return "", err
	}
	for _, key := range urlEnvKeys {
		if v := vars[key]; v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("no database URL in %s", envPath)
}

// parseEnvFile reads KEY=VALUE lines, skipping comments and blanks.
// Values may be single- or double-quoted.
func parseEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	vars := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		vars[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return vars, nil
}

func findEnvFile(start string) (string, bool) {
	for dir := start; ; {
		candidate := filepath.Join(dir, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
