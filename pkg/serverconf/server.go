package serverconf

import "fmt"

// Main is the [main] section of server.conf.
type Main struct {
	Token        string
	GunicornBind string
}

// ODB is the [odb] section of server.conf.
type ODB struct {
	Engine   string
	DB       string
	Host     string
	Port     int
	Username string
	Password string
	PoolSize int
}

// ServerConfig is the typed view of server.conf used by the cache client.
type ServerConfig struct {
	Main Main
	ODB  ODB

	File    *File
	Secrets *File
}

// LoadServer loads secrets.conf and server.conf from repoDir, resolving
// protected values in server.conf through cm and the secrets file.
func LoadServer(repoDir string, cm Decrypter) (*ServerConfig, error) {
	secretsConf, err := Load(repoDir, SecretsFile, Options{})
	if err != nil {
		return nil, err
	}

	conf, err := Load(repoDir, ServerFile, Options{Crypto: cm, Secrets: secretsConf})
	if err != nil {
		return nil, err
	}

	return newServerConfig(conf, secretsConf)
}

func newServerConfig(conf, secretsConf *File) (*ServerConfig, error) {
	sc := &ServerConfig{
		Main: Main{
			Token:        conf.Value("main", "token"),
			GunicornBind: conf.Value("main", "gunicorn_bind"),
		},
		ODB: ODB{
			Engine:   conf.Value("odb", "engine"),
			DB:       conf.Value("odb", "db_name"),
			Host:     conf.Value("odb", "host"),
			Username: conf.Value("odb", "username"),
			Password: conf.Value("odb", "password"),
		},
		File:    conf,
		Secrets: secretsConf,
	}

	var err error
	if sc.ODB.Port, err = conf.Int("odb", "port", 0); err != nil {
		return nil, err
	}
	if sc.ODB.PoolSize, err = conf.Int("odb", "pool_size", 1); err != nil {
		return nil, err
	}

	if sc.Main.Token == "" {
		return nil, fmt.Errorf("%w: main.token", ErrMissingValue)
	}
	if sc.Main.GunicornBind == "" {
		return nil, fmt.Errorf("%w: main.gunicorn_bind", ErrMissingValue)
	}
	if sc.ODB.Engine == "" {
		return nil, fmt.Errorf("%w: odb.engine", ErrMissingValue)
	}

	return sc, nil
}
