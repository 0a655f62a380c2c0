package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"

	EnvProduction = "production"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *PostgresConfig `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// Redis is optional; the revocation list falls back to Postgres when Addr is empty.
	Redis *RedisConfig `json:"redis" yaml:"redis"`

	SecretKey struct {
		Access  string `json:"access" yaml:"access"`
		Refresh string `json:"refresh" yaml:"refresh"`
	} `json:"secretKey" yaml:"secretKey"`

	Token *TokenConfig `json:"token" yaml:"token"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	PasswordStrength *PasswordStrengthConfig `json:"passwordStrength" yaml:"passwordStrength"`

	Audit *AuditConfig `json:"audit" yaml:"audit"`

	// PubSub configuration for the real-time audit sink
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	// Firebase configuration for security alert pushes (alert worker)
	Firebase *FirebaseConfig `json:"firebase" yaml:"firebase"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// PostgresConfig holds the primary connection and optional read replicas.
type PostgresConfig struct {
	Host            string          `json:"host" yaml:"host"`
	Port            string          `json:"port" yaml:"port"`
	UserName        string          `json:"userName" yaml:"userName"`
	Password        string          `json:"password" yaml:"password"`
	DBName          string          `json:"dbName" yaml:"dbName"`
	SSLMode         string          `json:"sslMode" yaml:"sslMode"`
	MaxOpenConns    int             `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int             `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration   `json:"connMaxLifetime" yaml:"connMaxLifetime"`
	AutoMigrate     bool            `json:"autoMigrate" yaml:"autoMigrate"`
	Replicas        []ReplicaConfig `json:"replicas" yaml:"replicas"`
}

type ReplicaConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	UserName string `json:"userName" yaml:"userName"`
	Password string `json:"password" yaml:"password"`
}

// DSN builds a libpq style connection string for the primary.
func (c *PostgresConfig) DSN() string {
	return c.dsn(c.Host, c.Port, c.UserName, c.Password)
}

// ReplicaDSN builds the connection string for a replica, inheriting database and ssl settings.
func (c *PostgresConfig) ReplicaDSN(r ReplicaConfig) string {
	user, password := r.UserName, r.Password
	if user == "" {
		user, password = c.UserName, c.Password
	}

	return c.dsn(r.Host, r.Port, user, password)
}

func (c *PostgresConfig) dsn(host, port, user, password string) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}

	return u.String()
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// TokenConfig controls JWT lifetimes and the refresh cookie.
type TokenConfig struct {
	AccessTTL        time.Duration `json:"accessTTL" yaml:"accessTTL"`
	RefreshTTL       time.Duration `json:"refreshTTL" yaml:"refreshTTL"`
	CookieExpiryDays int           `json:"cookieExpiryDays" yaml:"cookieExpiryDays"`
	CookiePath       string        `json:"cookiePath" yaml:"cookiePath"`
	Issuer           string        `json:"issuer" yaml:"issuer"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost          int           `json:"bcryptCost" yaml:"bcryptCost"`
	MaxFailedAttempts   int           `json:"maxFailedAttempts" yaml:"maxFailedAttempts"`
	LockDuration        time.Duration `json:"lockDuration" yaml:"lockDuration"`
	RequireVerification bool          `json:"requireVerification" yaml:"requireVerification"`
	VerificationTTL     time.Duration `json:"verificationTTL" yaml:"verificationTTL"`
	// DistinctLoginErrors tells "unknown account" apart from "wrong password" in responses.
	DistinctLoginErrors bool `json:"distinctLoginErrors" yaml:"distinctLoginErrors"`
	// RevocationSweepInterval applies to the Postgres revocation list only.
	RevocationSweepInterval time.Duration `json:"revocationSweepInterval" yaml:"revocationSweepInterval"`
}

// PasswordStrengthConfig defines password strength requirements
type PasswordStrengthConfig struct {
	MinLength        int  `json:"minLength" yaml:"minLength"`
	RequireUppercase bool `json:"requireUppercase" yaml:"requireUppercase"`
	RequireLowercase bool `json:"requireLowercase" yaml:"requireLowercase"`
	RequireNumbers   bool `json:"requireNumbers" yaml:"requireNumbers"`
	RequireSpecial   bool `json:"requireSpecial" yaml:"requireSpecial"`
	MaxLength        int  `json:"maxLength" yaml:"maxLength"`
}

// AuditConfig controls the recorder's worker pool and the query limits.
type AuditConfig struct {
	Workers         int           `json:"workers" yaml:"workers"`
	QueueSize       int           `json:"queueSize" yaml:"queueSize"`
	JourneyHeader   string        `json:"journeyHeader" yaml:"journeyHeader"`
	JourneyCookie   string        `json:"journeyCookie" yaml:"journeyCookie"`
	MaxQueryRange   time.Duration `json:"maxQueryRange" yaml:"maxQueryRange"`
	DefaultPageSize int           `json:"defaultPageSize" yaml:"defaultPageSize"`
	MaxPageSize     int           `json:"maxPageSize" yaml:"maxPageSize"`
	MaxExportRows   int           `json:"maxExportRows" yaml:"maxExportRows"`
	// ExportBucketURL is a gocloud blob URL (file:///..., gs://..., s3://...). Empty disables export.
	ExportBucketURL string `json:"exportBucketURL" yaml:"exportBucketURL"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "local" for local HTTP or "google" for Google Pub/Sub; empty disables publishing
	Provider string `json:"provider" yaml:"provider"`

	ProjectID string `json:"projectId" yaml:"projectId"`

	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`

	// Audience expected in push OIDC tokens (alert worker)
	PushAudience string `json:"pushAudience" yaml:"pushAudience"`
}

// FirebaseConfig defines Firebase configuration for security alerts
type FirebaseConfig struct {
	ProjectID       string `json:"projectId" yaml:"projectId"`
	CredentialsPath string `json:"credentialsPath" yaml:"credentialsPath"`
	AlertTopic      string `json:"alertTopic" yaml:"alertTopic"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if cfg.Postgres == nil {
		cfg.Postgres = &PostgresConfig{}
	}

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if replicas := buildReplicasFromEnv(); len(replicas) > 0 {
		cfg.Postgres.Replicas = replicas
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether cookies must carry the Secure flag.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env.Env, EnvProduction)
}

// ApplyDefaults fills every optional setting that was left empty.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.HTTP.MaxRequestBodySize) == "" {
		c.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if c.Env.Log.Level == "" {
		c.Env.Log.Level = "info"
	}

	if c.Token == nil {
		c.Token = &TokenConfig{}
	}
	if c.Token.AccessTTL <= 0 {
		c.Token.AccessTTL = 30 * 24 * time.Hour
	}
	if c.Token.RefreshTTL <= 0 {
		c.Token.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Token.CookieExpiryDays <= 0 {
		c.Token.CookieExpiryDays = 7
	}
	if c.Token.CookiePath == "" {
		c.Token.CookiePath = "/auth"
	}
	if c.Token.Issuer == "" {
		c.Token.Issuer = "warden"
	}

	if c.Auth == nil {
		c.Auth = &AuthConfig{RequireVerification: true}
	}
	if c.Auth.BcryptCost <= 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Auth.MaxFailedAttempts <= 0 {
		c.Auth.MaxFailedAttempts = 5
	}
	if c.Auth.LockDuration <= 0 {
		c.Auth.LockDuration = 15 * time.Minute
	}
	if c.Auth.VerificationTTL <= 0 {
		c.Auth.VerificationTTL = 24 * time.Hour
	}
	if c.Auth.RevocationSweepInterval <= 0 {
		c.Auth.RevocationSweepInterval = time.Hour
	}

	if c.PasswordStrength == nil {
		c.PasswordStrength = &PasswordStrengthConfig{MinLength: 8, MaxLength: 128}
	}

	if c.Audit == nil {
		c.Audit = &AuditConfig{}
	}
	if c.Audit.Workers <= 0 {
		c.Audit.Workers = 4
	}
	if c.Audit.QueueSize <= 0 {
		c.Audit.QueueSize = 1024
	}
	if c.Audit.JourneyHeader == "" {
		c.Audit.JourneyHeader = "X-Journey-Id"
	}
	if c.Audit.JourneyCookie == "" {
		c.Audit.JourneyCookie = "journeyId"
	}
	if c.Audit.MaxQueryRange <= 0 {
		c.Audit.MaxQueryRange = 365 * 24 * time.Hour
	}
	if c.Audit.DefaultPageSize <= 0 {
		c.Audit.DefaultPageSize = 20
	}
	if c.Audit.MaxPageSize <= 0 {
		c.Audit.MaxPageSize = 100
	}
	if c.Audit.MaxExportRows <= 0 {
		c.Audit.MaxExportRows = 10000
	}

	if c.PubSub == nil {
		c.PubSub = &PubSubConfig{}
	}
	if c.Firebase == nil {
		c.Firebase = &FirebaseConfig{}
	}
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SecretKey.Access) == "" || strings.TrimSpace(c.SecretKey.Refresh) == "" {
		return errors.New("secretKey.access and secretKey.refresh must be set")
	}
	if c.SecretKey.Access == c.SecretKey.Refresh {
		return errors.New("secretKey.access and secretKey.refresh must differ")
	}
	if c.Auth == nil || c.Auth.MaxFailedAttempts <= 0 || c.Auth.LockDuration <= 0 {
		return errors.New("auth.maxFailedAttempts and auth.lockDuration must be positive")
	}
	if c.Audit != nil && c.Audit.DefaultPageSize > c.Audit.MaxPageSize {
		return errors.Errorf("audit.defaultPageSize (%d) exceeds audit.maxPageSize (%d)",
			c.Audit.DefaultPageSize, c.Audit.MaxPageSize)
	}

	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
func buildReplicasFromEnv() []ReplicaConfig {
	var replicas []ReplicaConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, ReplicaConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}
