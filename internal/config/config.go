// Package config resolves huddle settings from flags, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Keys shared by the cobra flags and the environment (HUDDLE_<KEY>).
const (
	KeyStoreURL  = "store-url"
	KeyAddr      = "addr"
	KeyStaticDir = "static-dir"
	KeyLogLevel  = "log-level"
	KeyLogFile   = "log-file"
	KeyServer    = "server"

	EnvPrefix = "HUDDLE"
)

const (
	DefaultAddr      = ":3000"
	DefaultStaticDir = "web/dist"
	DefaultLogLevel  = "info"
	DefaultServer    = "http://localhost:3000"
)

// ErrMissingStoreURL is returned when no connection string was configured.
var ErrMissingStoreURL = errors.New("store url is required (set HUDDLE_STORE_URL or MONGO_URL)")

// Engine names a storage backend.
type Engine string

const (
	EngineSQLite Engine = "sqlite"
	EngineMongo  Engine = "mongo"
)

// Store points at a storage backend.
type Store struct {
	Engine Engine
	// Target is the MongoDB URI or the SQLite file path.
	Target string
}

// Log holds logger settings.
type Log struct {
	Level string
	File  string
}

// Server is everything `huddle serve` needs.
type Server struct {
	Store     Store
	Addr      string
	StaticDir string
	Log       Log
}

// Bind sets defaults and environment lookups on v. MONGO_URL is honoured as a
// fallback for the store url.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv(KeyStoreURL, EnvPrefix+"_STORE_URL", "MONGO_URL")
	v.SetDefault(KeyAddr, DefaultAddr)
	v.SetDefault(KeyStaticDir, DefaultStaticDir)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyServer, DefaultServer)
}

// Load reads and validates the server settings.
func Load(v *viper.Viper) (Server, error) {
	store, err := ParseStoreURL(v.GetString(KeyStoreURL))
	if err != nil {
		return Server{}, err
	}
	cfg := Server{
		Store:     store,
		Addr:      v.GetString(KeyAddr),
		StaticDir: v.GetString(KeyStaticDir),
		Log: Log{
			Level: v.GetString(KeyLogLevel),
			File:  v.GetString(KeyLogFile),
		},
	}
	if cfg.Addr == "" {
		return Server{}, errors.New("listen address must not be empty")
	}
	return cfg, nil
}

// ParseStoreURL picks the engine from the connection string scheme.
func ParseStoreURL(raw string) (Store, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Store{}, ErrMissingStoreURL
	case strings.HasPrefix(raw, "mongodb://"), strings.HasPrefix(raw, "mongodb+srv://"):
		return Store{Engine: EngineMongo, Target: raw}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return sqliteStore(strings.TrimPrefix(raw, "sqlite://"))
	case strings.HasPrefix(raw, "file:"):
		return sqliteStore(strings.TrimPrefix(raw, "file:"))
	case strings.Contains(raw, "://"):
		return Store{}, fmt.Errorf("unsupported store url scheme in %q", raw)
	default:
		return sqliteStore(raw)
	}
}

func sqliteStore(path string) (Store, error) {
	path, _, _ = strings.Cut(path, "?")
	if path == "" {
		return Store{}, errors.New("sqlite store url has no path")
	}
	return Store{Engine: EngineSQLite, Target: path}, nil
}
