// Package config provides configuration loading for the attrsync daemon.
// It handles Git remote settings, attribution defaults, record store
// credentials (from environment variables or HashiCorp Vault), and
// daemon scheduling options.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/vault"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	// EnvRepoPath is the path to the working tree to synchronize.
	EnvRepoPath = "REPO_PATH"

	// EnvGitRemote is a complete remote URL, used verbatim when set.
	EnvGitRemote = "GIT_REMOTE"

	// EnvGitUser, EnvGitToken and EnvGitRepo build an authenticated
	// HTTPS remote URL when EnvGitRemote is not set.
	EnvGitUser  = "GIT_USER"
	EnvGitToken = "GIT_TOKEN"
	EnvGitRepo  = "GIT_REPO"

	// EnvBranch is the branch to commit to and publish.
	EnvBranch = "SYNC_BRANCH"

	// EnvDefaultAuthorName and EnvDefaultAuthorEmail form the fallback
	// identity used when no attribution record can be resolved.
	EnvDefaultAuthorName  = "DEFAULT_AUTHOR_NAME"
	EnvDefaultAuthorEmail = "DEFAULT_AUTHOR_EMAIL"

	// EnvEmailDomain is the domain used to synthesize addresses for
	// usernames without a stored email.
	EnvEmailDomain = "EMAIL_DOMAIN"

	// EnvRootPrefix is prepended to repository-relative paths when
	// looking them up in the record store.
	EnvRootPrefix = "SYNC_ROOT_PREFIX"

	// EnvSystemAccounts is a comma-separated list of usernames never
	// credited as authors.
	EnvSystemAccounts = "SYSTEM_ACCOUNTS"

	// EnvInterval is the delay between daemon cycles.
	EnvInterval = "SYNC_INTERVAL"

	// EnvLockDir is the directory holding the cycle lock file.
	EnvLockDir = "SYNC_LOCK_DIR"

	// EnvDBHost, EnvDBPort, EnvDBName, EnvDBUser and EnvDBPassword
	// configure the record store connection directly.
	EnvDBHost     = "DB_HOST"
	EnvDBPort     = "DB_PORT"
	EnvDBName     = "DB_NAME"
	EnvDBUser     = "DB_USER"
	EnvDBPassword = "DB_PASSWORD"

	// EnvVaultStoreCredsPath is the path in Vault KV where record store
	// credentials are stored. When set, Vault values take precedence
	// over the DB_* variables.
	EnvVaultStoreCredsPath = "VAULT_STORE_CREDS_PATH"

	// EnvVaultStoreCredsMount is the Vault KV mount point (defaults to "secret").
	EnvVaultStoreCredsMount = "VAULT_STORE_CREDS_MOUNT"

	// EnvLogLevel is the log level (debug, info, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogAppName is the application name for log context.
	EnvLogAppName = "LOG_APP_NAME"
)

// Default values.
const (
	DefaultAuthorName      = "Sync Batch"
	DefaultAuthorUser      = "sync-batch"
	DefaultEmailDomain     = "example.com"
	DefaultSystemAccounts  = "nextcloud,system,www-data,cron,root"
	DefaultInterval        = 5 * time.Minute
	DefaultDBPort          = 5432
	DefaultLogLevel        = "info"
	DefaultLogAppName      = "attrsync"
	DefaultVaultStoreMount = "secret"
)

// Configuration errors.
var (
	// ErrRemoteRequired indicates no usable remote configuration is available.
	ErrRemoteRequired = errors.New(
		"git remote required: set GIT_REMOTE, or GIT_USER, GIT_TOKEN and GIT_REPO",
	)

	// ErrBranchRequired indicates SYNC_BRANCH is not set.
	ErrBranchRequired = errors.New("sync branch required: set SYNC_BRANCH")

	// ErrInvalidInterval indicates SYNC_INTERVAL is not a valid duration.
	ErrInvalidInterval = errors.New("invalid sync interval")

	// ErrInvalidDBPort indicates DB_PORT is not a valid port number.
	ErrInvalidDBPort = errors.New("invalid record store port")

	// ErrVaultClientFailed indicates failure to create or authenticate with Vault.
	ErrVaultClientFailed = errors.New("failed to create Vault client")

	// ErrVaultSecretNotFound indicates the secret was not found in Vault.
	ErrVaultSecretNotFound = errors.New("record store credentials not found in Vault")
)

// VaultClient defines the interface for Vault operations.
// This interface allows for dependency injection and testing.
type VaultClient interface {
	// GetKVSecret retrieves a secret from Vault's KV v2 secrets engine.
	GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error)
}

// VaultClientFactory creates a VaultClient using AppRole authentication.
// This is the default factory used in production.
type VaultClientFactory func(ctx context.Context) (VaultClient, error)

// DefaultVaultClientFactory creates a VaultClient using goLibMyCarrier/vault with AppRole auth.
func DefaultVaultClientFactory(ctx context.Context) (VaultClient, error) {
	// Uses: VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID
	vaultConfig, err := vault.VaultLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	client, err := vault.CreateVaultClient(ctx, vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	return client, nil
}

// StoreConfig holds record store connection parameters.
type StoreConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Config holds all application configuration.
type Config struct {
	// RepoPath is the working tree to synchronize. Defaults to the
	// current directory.
	RepoPath string

	// Branch is the branch commits land on and publish to.
	Branch string

	// RemoteURL is the push/fetch URL for the origin remote.
	RemoteURL string

	// GitUser and GitToken authenticate HTTPS transport operations.
	GitUser  string
	GitToken string

	// DefaultAuthorName and DefaultAuthorEmail identify commits whose
	// author could not be resolved from the record store.
	DefaultAuthorName  string
	DefaultAuthorEmail string

	// EmailDomain synthesizes addresses for usernames without a stored email.
	EmailDomain string

	// RootPrefix maps repository-relative paths into record store path keys.
	RootPrefix string

	// SystemAccounts are usernames never credited as authors.
	SystemAccounts []string

	// Interval is the delay between daemon cycles.
	Interval time.Duration

	// LockDir holds the cycle lock file. Empty means the OS temp directory.
	LockDir string

	// Store is the record store connection, nil when attribution is
	// not configured.
	Store *StoreConfig

	// LogLevel is the logging level (debug, info, error).
	LogLevel string

	// LogAppName is the application name for log context.
	LogAppName string
}

// Load loads the application configuration from environment variables.
// A .env file in the working directory is loaded first when present.
//
// Record store credentials come from Vault when VAULT_STORE_CREDS_PATH
// is set (requires VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID),
// otherwise from the DB_* variables. When neither is configured the
// daemon runs without attribution and every commit uses the default
// identity.
func Load() (*Config, error) {
	return LoadWithVaultClient(context.Background(), nil)
}

// LoadWithVaultClient loads configuration using the provided VaultClient factory.
// If vaultClientFactory is nil, DefaultVaultClientFactory is used.
// This function enables dependency injection for testing.
func LoadWithVaultClient(ctx context.Context, vaultClientFactory VaultClientFactory) (*Config, error) {
	// Best effort; absence of a .env file is the normal case.
	_ = godotenv.Load()

	remoteURL, user, token, err := remoteFromEnv()
	if err != nil {
		return nil, err
	}

	branch := os.Getenv(EnvBranch)
	if branch == "" {
		return nil, ErrBranchRequired
	}

	interval := DefaultInterval
	if raw := os.Getenv(EnvInterval); raw != "" {
		interval, err = time.ParseDuration(raw)
		if err != nil || interval <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidInterval, raw)
		}
	}

	storeConfig, err := loadStoreConfig(ctx, vaultClientFactory)
	if err != nil {
		return nil, err
	}

	emailDomain := envOrDefault(EnvEmailDomain, DefaultEmailDomain)

	return &Config{
		RepoPath:           envOrDefault(EnvRepoPath, "."),
		Branch:             branch,
		RemoteURL:          remoteURL,
		GitUser:            user,
		GitToken:           token,
		DefaultAuthorName:  envOrDefault(EnvDefaultAuthorName, DefaultAuthorName),
		DefaultAuthorEmail: envOrDefault(EnvDefaultAuthorEmail, DefaultAuthorUser+"@"+emailDomain),
		EmailDomain:        emailDomain,
		RootPrefix:         os.Getenv(EnvRootPrefix),
		SystemAccounts:     splitAccounts(envOrDefault(EnvSystemAccounts, DefaultSystemAccounts)),
		Interval:           interval,
		LockDir:            os.Getenv(EnvLockDir),
		Store:              storeConfig,
		LogLevel:           envOrDefault(EnvLogLevel, DefaultLogLevel),
		LogAppName:         envOrDefault(EnvLogAppName, DefaultLogAppName),
	}, nil
}

// remoteFromEnv resolves the remote URL and transport credentials.
// GIT_REMOTE wins when set; otherwise GIT_USER, GIT_TOKEN and GIT_REPO
// build an authenticated GitHub HTTPS URL.
func remoteFromEnv() (remoteURL, user, token string, err error) {
	user = os.Getenv(EnvGitUser)
	token = os.Getenv(EnvGitToken)

	if remote := os.Getenv(EnvGitRemote); remote != "" {
		return remote, user, token, nil
	}

	repo := os.Getenv(EnvGitRepo)
	if user == "" || token == "" || repo == "" {
		return "", "", "", ErrRemoteRequired
	}

	repo = strings.TrimSuffix(repo, ".git")
	return fmt.Sprintf("https://%s:%s@github.com/%s.git", user, token, repo), user, token, nil
}

// loadStoreConfig resolves record store credentials from Vault or the
// DB_* environment variables. Returns nil when neither source is
// configured.
func loadStoreConfig(ctx context.Context, vaultClientFactory VaultClientFactory) (*StoreConfig, error) {
	if path := os.Getenv(EnvVaultStoreCredsPath); path != "" {
		return loadStoreConfigFromVault(ctx, vaultClientFactory, path)
	}

	host := os.Getenv(EnvDBHost)
	if host == "" {
		return nil, nil
	}

	port := DefaultDBPort
	if raw := os.Getenv(EnvDBPort); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 65535 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDBPort, raw)
		}
		port = parsed
	}

	return &StoreConfig{
		Host:     host,
		Port:     port,
		Database: os.Getenv(EnvDBName),
		User:     os.Getenv(EnvDBUser),
		Password: os.Getenv(EnvDBPassword),
	}, nil
}

// loadStoreConfigFromVault loads record store credentials from Vault KV v2.
// The secret holds host, port, database, user and password keys; port
// may be stored as a string or a number.
func loadStoreConfigFromVault(
	ctx context.Context,
	vaultClientFactory VaultClientFactory,
	path string,
) (*StoreConfig, error) {
	if vaultClientFactory == nil {
		vaultClientFactory = DefaultVaultClientFactory
	}

	client, err := vaultClientFactory(ctx)
	if err != nil {
		return nil, err
	}

	mount := os.Getenv(EnvVaultStoreCredsMount)
	if mount == "" {
		mount = DefaultVaultStoreMount
	}

	secretData, err := client.GetKVSecret(ctx, path, mount)
	if err != nil {
		return nil, fmt.Errorf("%w at path %s: %w", ErrVaultSecretNotFound, path, err)
	}

	cfg := &StoreConfig{
		Host:     secretString(secretData, "host"),
		Port:     DefaultDBPort,
		Database: secretString(secretData, "database"),
		User:     secretString(secretData, "user"),
		Password: secretString(secretData, "password"),
	}

	if raw := secretString(secretData, "port"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 65535 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDBPort, raw)
		}
		cfg.Port = parsed
	}

	return cfg, nil
}

// secretString reads a Vault secret value as a string, accepting the
// numeric JSON representation Vault returns for number values.
func secretString(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	default:
		return ""
	}
}

// splitAccounts parses a comma-separated account list, trimming
// whitespace and dropping empty items.
func splitAccounts(raw string) []string {
	parts := strings.Split(raw, ",")
	accounts := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			accounts = append(accounts, trimmed)
		}
	}
	return accounts
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
