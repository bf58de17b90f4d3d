package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/zato-cache-client/pkg/odb"
	"github.com/Sternrassler/zato-cache-client/pkg/secrets"
	"github.com/Sternrassler/zato-cache-client/pkg/serverconf"
)

// ServerDir describes an on-disk server directory for tests.
type ServerDir struct {
	Token        string
	GunicornBind string

	// CachePassword is stored for pub.zato.cache. Empty means no definition.
	CachePassword string

	// EncryptPassword stores CachePassword as a Fernet token.
	EncryptPassword bool

	// ExtraServerTokens adds servers sharing Token, to provoke ambiguity.
	ExtraServerTokens []string
}

// WriteServerDir creates a server directory with secrets.conf, server.conf
// and a sqlite ODB populated from sd. It returns the server directory.
func WriteServerDir(t *testing.T, sd ServerDir) string {
	t.Helper()

	serverDir := t.TempDir()
	repoDir := serverconf.RepoDir(serverDir)
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}

	key, err := secrets.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cm, err := secrets.NewManager(key)
	if err != nil {
		t.Fatalf("crypto manager: %v", err)
	}

	encToken, err := cm.Encrypt(sd.Token)
	if err != nil {
		t.Fatalf("encrypt token: %v", err)
	}

	dbPath := filepath.Join(serverDir, "odb.sqlite")

	writeConf(t, repoDir, serverconf.SecretsFile,
		"[secret_keys]",
		"key1="+key,
		"",
		"[zato]",
		"server_conf.main.token="+encToken,
	)
	writeConf(t, repoDir, serverconf.ServerFile,
		"[main]",
		"gunicorn_bind="+sd.GunicornBind,
		"token=zato+secret://zato.server_conf.main.token",
		"",
		"[odb]",
		"engine=sqlite",
		"db_name="+dbPath,
	)

	ctx := context.Background()
	sess, err := odb.Open(ctx, odb.Config{Engine: odb.EngineSQLite, DB: dbPath})
	if err != nil {
		t.Fatalf("open odb: %v", err)
	}
	defer sess.Close()

	if err := sess.CreateSchema(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	clusterID, err := sess.AddCluster(ctx, "test-cluster")
	if err != nil {
		t.Fatalf("add cluster: %v", err)
	}
	if _, err := sess.AddServer(ctx, clusterID, "server1", sd.Token); err != nil {
		t.Fatalf("add server: %v", err)
	}
	for i, token := range sd.ExtraServerTokens {
		if _, err := sess.AddServer(ctx, clusterID, "extra"+string(rune('a'+i)), token); err != nil {
			t.Fatalf("add server: %v", err)
		}
	}

	if sd.CachePassword != "" {
		password := sd.CachePassword
		if sd.EncryptPassword {
			if password, err = cm.Encrypt(password); err != nil {
				t.Fatalf("encrypt password: %v", err)
			}
		}
		if _, err := sess.AddBasicAuth(ctx, clusterID, "pub.zato.cache", "pub.zato.cache", password); err != nil {
			t.Fatalf("add basic auth: %v", err)
		}
	}

	return serverDir
}

func writeConf(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
