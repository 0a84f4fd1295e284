// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables,
// a .env file and an optional JSON or YAML config file.
//
// Precedence, lowest first: defaults, config file, environment, flags that
// were set explicitly on the command line.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Auth modes.
const (
	AuthToken   = "token"
	AuthSession = "session"
)

// DotEnvFile is loaded from the working directory when present.
const DotEnvFile = ".env"

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string

	// RedisURL is a redis:// URL used by the redis store backend.
	RedisURL string

	// Store selects the credential and session backend.
	Store string

	// AuthMode selects signed tokens or server-side sessions.
	AuthMode string

	// SecretKey signs tokens and session cookies.
	SecretKey string

	// SecretGenerated is true when SecretKey was not configured and a random
	// one was generated for this process.
	SecretGenerated bool

	// TokenTTL is the lifetime of tokens and sessions.
	TokenTTL time.Duration

	CookieSecure bool

	TLSCert string
	TLSKey  string

	// SeedIdentifier and SeedSecret create a default credential at boot.
	SeedIdentifier string
	SeedSecret     string

	AllowedOrigins []string

	LogLevel string

	// Config is the path to the Config file.
	Config string
}

// fileOptions mirrors Options in a config file. Durations are strings ("90m").
type fileOptions struct {
	Address        string   `json:"address" yaml:"address"`
	DatabaseDSN    string   `json:"database_dsn" yaml:"database_dsn"`
	RedisURL       string   `json:"redis_url" yaml:"redis_url"`
	Store          string   `json:"store" yaml:"store"`
	AuthMode       string   `json:"auth_mode" yaml:"auth_mode"`
	SecretKey      string   `json:"secret_key" yaml:"secret_key"`
	TokenTTL       string   `json:"token_ttl" yaml:"token_ttl"`
	CookieSecure   *bool    `json:"cookie_secure" yaml:"cookie_secure"`
	TLSCert        string   `json:"tls_cert" yaml:"tls_cert"`
	TLSKey         string   `json:"tls_key" yaml:"tls_key"`
	SeedIdentifier string   `json:"seed_identifier" yaml:"seed_identifier"`
	SeedSecret     string   `json:"seed_secret" yaml:"seed_secret"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
	LogLevel       string   `json:"log_level" yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Options {
	return &Options{
		Port:           "localhost:5000",
		Store:          StoreMemory,
		AuthMode:       AuthToken,
		TokenTTL:       time.Hour,
		AllowedOrigins: []string{"*"},
		LogLevel:       "info",
	}
}

// Parse reads the process arguments and environment. It exits on error.
func Parse() *Options {
	if err := LoadDotEnv(DotEnvFile); err != nil {
		log.Fatalf("error while loading %s: %v", DotEnvFile, err)
	}
	options, err := ParseArgs(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return options
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ParseArgs builds Options from args, the environment and the config file.
func ParseArgs(name string, args []string) (*Options, error) {
	options := Default()
	flags := Default()
	var origins string

	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.StringVar(&flags.Port, "a", flags.Port, "run on ip:port server")
	fset.StringVar(&flags.DatabaseDSN, "d", "", "db address")
	fset.StringVar(&flags.RedisURL, "r", "", "redis url")
	fset.StringVar(&flags.Store, "store", flags.Store, "credential store: memory, postgres or redis")
	fset.StringVar(&flags.AuthMode, "auth", flags.AuthMode, "auth mode: token or session")
	fset.StringVar(&flags.SecretKey, "k", "", "signing key for tokens and cookies")
	fset.DurationVar(&flags.TokenTTL, "ttl", flags.TokenTTL, "token and session lifetime")
	fset.BoolVar(&flags.CookieSecure, "cookie-secure", false, "mark cookies Secure")
	fset.StringVar(&flags.TLSCert, "tls-cert", "", "TLS certificate file")
	fset.StringVar(&flags.TLSKey, "tls-key", "", "TLS key file")
	fset.StringVar(&flags.SeedIdentifier, "seed-id", "", "identifier of the default credential")
	fset.StringVar(&flags.SeedSecret, "seed-secret", "", "secret of the default credential")
	fset.StringVar(&origins, "origins", "*", "comma-separated CORS origins")
	fset.StringVar(&flags.LogLevel, "l", flags.LogLevel, "log level")
	fset.StringVar(&flags.Config, "config", "", "path to config file")
	fset.StringVar(&flags.Config, "c", "", "path to config file (shorthand)")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	options.Config = os.Getenv("CONFIG")
	if flags.Config != "" {
		options.Config = flags.Config
	}
	if options.Config != "" {
		if err := options.loadFile(options.Config); err != nil {
			return nil, err
		}
	}

	if err := options.loadEnv(); err != nil {
		return nil, err
	}

	setters := map[string]func(){
		"a":             func() { options.Port = flags.Port },
		"d":             func() { options.DatabaseDSN = flags.DatabaseDSN },
		"r":             func() { options.RedisURL = flags.RedisURL },
		"store":         func() { options.Store = flags.Store },
		"auth":          func() { options.AuthMode = flags.AuthMode },
		"k":             func() { options.SecretKey = flags.SecretKey },
		"ttl":           func() { options.TokenTTL = flags.TokenTTL },
		"cookie-secure": func() { options.CookieSecure = flags.CookieSecure },
		"tls-cert":      func() { options.TLSCert = flags.TLSCert },
		"tls-key":       func() { options.TLSKey = flags.TLSKey },
		"seed-id":       func() { options.SeedIdentifier = flags.SeedIdentifier },
		"seed-secret":   func() { options.SeedSecret = flags.SeedSecret },
		"origins":       func() { options.AllowedOrigins = splitList(origins) },
		"l":             func() { options.LogLevel = flags.LogLevel },
	}
	fset.Visit(func(f *flag.Flag) {
		if set, ok := setters[f.Name]; ok {
			set()
		}
	})

	if options.SecretKey == "" {
		key, err := randomKey()
		if err != nil {
			return nil, err
		}
		options.SecretKey = key
		options.SecretGenerated = true
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

func (o *Options) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error while reading config file: %w", err)
	}

	var fo fileOptions
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fo)
	default:
		err = json.Unmarshal(data, &fo)
	}
	if err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}

	setString(&o.Port, fo.Address)
	setString(&o.DatabaseDSN, fo.DatabaseDSN)
	setString(&o.RedisURL, fo.RedisURL)
	setString(&o.Store, fo.Store)
	setString(&o.AuthMode, fo.AuthMode)
	setString(&o.SecretKey, fo.SecretKey)
	setString(&o.TLSCert, fo.TLSCert)
	setString(&o.TLSKey, fo.TLSKey)
	setString(&o.SeedIdentifier, fo.SeedIdentifier)
	setString(&o.SeedSecret, fo.SeedSecret)
	setString(&o.LogLevel, fo.LogLevel)
	if fo.TokenTTL != "" {
		ttl, err := time.ParseDuration(fo.TokenTTL)
		if err != nil {
			return fmt.Errorf("config file token_ttl: %w", err)
		}
		o.TokenTTL = ttl
	}
	if fo.CookieSecure != nil {
		o.CookieSecure = *fo.CookieSecure
	}
	if len(fo.AllowedOrigins) > 0 {
		o.AllowedOrigins = fo.AllowedOrigins
	}
	return nil
}

func (o *Options) loadEnv() error {
	envs := map[string]*string{
		"SERVER_ADDRESS":  &o.Port,
		"DATABASE_DSN":    &o.DatabaseDSN,
		"REDIS_URL":       &o.RedisURL,
		"STORE_BACKEND":   &o.Store,
		"AUTH_MODE":       &o.AuthMode,
		"SECRET_KEY":      &o.SecretKey,
		"TLS_CERT":        &o.TLSCert,
		"TLS_KEY":         &o.TLSKey,
		"SEED_IDENTIFIER": &o.SeedIdentifier,
		"SEED_SECRET":     &o.SeedSecret,
		"LOG_LEVEL":       &o.LogLevel,
	}
	for name, dst := range envs {
		setString(dst, os.Getenv(name))
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TOKEN_TTL: %w", err)
		}
		o.TokenTTL = ttl
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		o.CookieSecure = secure
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		o.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate reports the first inconsistency in o.
func (o *Options) Validate() error {
	switch o.Store {
	case StoreMemory:
	case StorePostgres:
		if o.DatabaseDSN == "" {
			return errors.New("postgres store requires a database DSN")
		}
	case StoreRedis:
		if o.RedisURL == "" {
			return errors.New("redis store requires a redis URL")
		}
	default:
		return fmt.Errorf("unknown store %q", o.Store)
	}

	if o.AuthMode != AuthToken && o.AuthMode != AuthSession {
		return fmt.Errorf("unknown auth mode %q", o.AuthMode)
	}
	if o.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive, got %s", o.TokenTTL)
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return errors.New("TLS requires both a certificate and a key")
	}
	if o.Port == "" {
		return errors.New("listen address is empty")
	}
	if _, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(o.LogLevel))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// TLSEnabled reports whether the server should serve HTTPS.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
