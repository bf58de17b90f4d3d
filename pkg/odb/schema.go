package odb

import (
	"context"
	"fmt"
)

// schema is the subset of the ODB the cache client reads.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS cluster (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS server (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		token TEXT NOT NULL,
		cluster_id INTEGER NOT NULL REFERENCES cluster(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS sec_base (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		username TEXT,
		password TEXT,
		sec_type TEXT NOT NULL,
		cluster_id INTEGER NOT NULL REFERENCES cluster(id) ON DELETE CASCADE
	)`,
}

// CreateSchema creates the tables used by this package if they do not exist.
func (s *Session) CreateSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// AddCluster inserts a cluster and returns its id.
func (s *Session) AddCluster(ctx context.Context, name string) (int64, error) {
	return s.insert(ctx, `INSERT INTO cluster (name) VALUES (?)`, name)
}

// AddServer inserts a server and returns its id.
func (s *Session) AddServer(ctx context.Context, clusterID int64, name, token string) (int64, error) {
	return s.insert(ctx, `INSERT INTO server (name, token, cluster_id) VALUES (?, ?, ?)`, name, token, clusterID)
}

// AddBasicAuth inserts an HTTP Basic Auth definition and returns its id.
func (s *Session) AddBasicAuth(ctx context.Context, clusterID int64, name, username, password string) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO sec_base (name, username, password, sec_type, cluster_id) VALUES (?, ?, ?, ?, ?)`,
		name, username, password, SecTypeBasicAuth, clusterID)
}

func (s *Session) insert(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert id: %w", err)
	}
	return id, nil
}
