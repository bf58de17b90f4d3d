// Package odb opens sessions against the server's operational database
// and resolves the records the cache client needs: servers, clusters and
// HTTP Basic Auth security definitions.
package odb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Sternrassler/zato-cache-client/pkg/logging"
	_ "github.com/mattn/go-sqlite3"     // sqlite engine
	_ "github.com/rqlite/gorqlite/stdlib" // rqlite engine
	"github.com/rs/zerolog"
)

// Supported engines.
const (
	EngineSQLite = "sqlite"
	EngineRQLite = "rqlite"
)

var (
	// ErrNoResultFound is returned when a query expected exactly one row and got none.
	ErrNoResultFound = errors.New("no row was found when one was required")

	// ErrMultipleResultsFound is returned when a query expected exactly one row and got more.
	ErrMultipleResultsFound = errors.New("multiple rows were found when exactly one was required")

	// ErrUnsupportedEngine is returned for engines without a registered driver.
	ErrUnsupportedEngine = errors.New("unsupported odb engine")
)

// Config describes how to reach the ODB.
type Config struct {
	Engine   string
	DB       string
	Host     string
	Port     int
	Username string
	Password string
	PoolSize int
}

// openSessions counts sessions returned by Open and not yet closed.
var openSessions atomic.Int64

// OpenSessions reports how many sessions are currently open.
func OpenSessions() int64 {
	return openSessions.Load()
}

// Session is an open connection to the ODB. Close must always be called.
type Session struct {
	db        *sql.DB
	engine    string
	logger    zerolog.Logger
	closeOnce sync.Once
	closeErr  error
}

// Open connects to the ODB described by cfg and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	driver, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open odb: %w", err)
	}
	if cfg.PoolSize > 0 {
		db.SetMaxOpenConns(cfg.PoolSize)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping odb: %w", err)
	}

	openSessions.Add(1)
	return &Session{
		db:     db,
		engine: cfg.Engine,
		logger: logging.NewLogger(logging.ComponentODB).With().Str("engine", cfg.Engine).Logger(),
	}, nil
}

func dataSource(cfg Config) (driver, dsn string, err error) {
	switch cfg.Engine {
	case EngineSQLite:
		if cfg.DB == "" {
			return "", "", fmt.Errorf("%w: sqlite needs db_name", ErrUnsupportedEngine)
		}
		return "sqlite3", cfg.DB, nil
	case EngineRQLite:
		host := cfg.Host
		if host == "" {
			host = "localhost"
		}
		port := cfg.Port
		if port == 0 {
			port = 4001
		}
		if cfg.Username != "" {
			return "rqlite", fmt.Sprintf("http://%s:%s@%s:%d/", cfg.Username, cfg.Password, host, port), nil
		}
		return "rqlite", fmt.Sprintf("http://%s:%d/", host, port), nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedEngine, cfg.Engine)
	}
}

// Close releases the session. Repeated calls return the first result.
func (s *Session) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
		openSessions.Add(-1)
	})
	return s.closeErr
}

// DB exposes the underlying handle.
func (s *Session) DB() *sql.DB {
	return s.db
}
