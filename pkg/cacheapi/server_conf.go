package cacheapi

import (
	"context"
	"fmt"

	"github.com/Sternrassler/zato-cache-client/pkg/odb"
	"github.com/Sternrassler/zato-cache-client/pkg/secrets"
	"github.com/Sternrassler/zato-cache-client/pkg/serverconf"
)

// Option adjusts the Config built by FromServerConf.
type Option func(*Config)

// WithConfig applies the optional fields of base (timeout, retry,
// transport, logger) to the resulting client.
func WithConfig(base Config) Option {
	return func(cfg *Config) {
		cfg.Timeout = base.Timeout
		cfg.Retry = base.Retry
		cfg.Transport = base.Transport
		cfg.Logger = base.Logger
	}
}

// FromServerConf creates a client for the server whose directory is
// serverDir. The password of APIUsername is looked up in the server's ODB,
// in the cluster the server belongs to; no matching definition means no
// authentication. The ODB session is closed before returning.
func FromServerConf(ctx context.Context, serverDir string, isHTTPS bool, opts ...Option) (*Client, error) {
	repoDir := serverconf.RepoDir(serverDir)

	cm, err := secrets.FromRepoDir(repoDir)
	if err != nil {
		return nil, fmt.Errorf("crypto manager: %w", err)
	}

	conf, err := serverconf.LoadServer(repoDir, cm)
	if err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	password, err := lookupPassword(ctx, conf, cm)
	if err != nil {
		return nil, err
	}

	cfg := Config{
		Address:  conf.Main.GunicornBind,
		Password: password,
		IsHTTPS:  isHTTPS,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := New(cfg)
	c.logger.Info().
		Str("address", c.Address()).
		Bool("auth", password != "").
		Msg("Cache API client created from server config")

	return c, nil
}

func lookupPassword(ctx context.Context, conf *serverconf.ServerConfig, cm *secrets.Manager) (string, error) {
	session, err := odb.Open(ctx, odb.Config{
		Engine:   conf.ODB.Engine,
		DB:       conf.ODB.DB,
		Host:     conf.ODB.Host,
		Port:     conf.ODB.Port,
		Username: conf.ODB.Username,
		Password: conf.ODB.Password,
		PoolSize: conf.ODB.PoolSize,
	})
	if err != nil {
		return "", fmt.Errorf("odb session: %w", err)
	}
	defer session.Close()

	server, err := session.ServerByToken(ctx, conf.Main.Token)
	if err != nil {
		return "", err
	}

	cluster, err := session.Cluster(ctx, server.ClusterID)
	if err != nil {
		return "", err
	}

	sec, err := session.BasicAuthByUsername(ctx, cluster.ID, APIUsername)
	if err != nil {
		return "", err
	}
	if sec == nil {
		return "", nil
	}

	if cm.IsEncrypted(sec.Password) {
		plain, err := cm.Decrypt(sec.Password)
		if err != nil {
			return "", fmt.Errorf("decrypt %s password: %w", APIUsername, err)
		}
		return plain, nil
	}
	return sec.Password, nil
}
