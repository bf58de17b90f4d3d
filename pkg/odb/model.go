package odb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SecTypeBasicAuth is the sec_type of HTTP Basic Auth definitions.
const SecTypeBasicAuth = "basic_auth"

// Cluster is a group of servers sharing one ODB.
type Cluster struct {
	ID   int64
	Name string
}

// Server is a single server belonging to a cluster.
type Server struct {
	ID        int64
	Name      string
	Token     string
	ClusterID int64
}

// HTTPBasicAuth is an HTTP Basic Auth security definition.
type HTTPBasicAuth struct {
	ID        int64
	Name      string
	Username  string
	Password  string
	ClusterID int64
}

// ServerByToken returns the one server whose token matches.
func (s *Session) ServerByToken(ctx context.Context, token string) (*Server, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, token, cluster_id FROM server WHERE token = ?`, token)
	if err != nil {
		return nil, fmt.Errorf("query server: %w", err)
	}
	defer rows.Close()

	var found *Server
	for rows.Next() {
		if found != nil {
			return nil, fmt.Errorf("server by token: %w", ErrMultipleResultsFound)
		}
		var srv Server
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.Token, &srv.ClusterID); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		found = &srv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query server: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("server by token: %w", ErrNoResultFound)
	}

	s.logger.Debug().Int64("server_id", found.ID).Int64("cluster_id", found.ClusterID).Msg("Resolved server")
	return found, nil
}

// Cluster returns the cluster with the given id.
func (s *Session) Cluster(ctx context.Context, id int64) (*Cluster, error) {
	var c Cluster
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM cluster WHERE id = ?`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cluster %d: %w", id, ErrNoResultFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query cluster: %w", err)
	}
	return &c, nil
}

// BasicAuthByUsername returns the first HTTP Basic Auth definition of the
// cluster with the given username, or nil if there is none.
func (s *Session) BasicAuthByUsername(ctx context.Context, clusterID int64, username string) (*HTTPBasicAuth, error) {
	var sec HTTPBasicAuth
	var password sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT sec_base.id, sec_base.name, sec_base.username, sec_base.password, sec_base.cluster_id
		FROM sec_base
		JOIN cluster ON cluster.id = sec_base.cluster_id
		WHERE sec_base.sec_type = ? AND sec_base.username = ? AND sec_base.cluster_id = ?
		ORDER BY sec_base.id
		LIMIT 1`,
		SecTypeBasicAuth, username, clusterID,
	).Scan(&sec.ID, &sec.Name, &sec.Username, &password, &sec.ClusterID)

	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug().Str("username", username).Int64("cluster_id", clusterID).Msg("No basic auth definition")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query basic auth: %w", err)
	}

	sec.Password = password.String
	return &sec, nil
}
