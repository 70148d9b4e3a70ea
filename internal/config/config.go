package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Completion providers
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Default models per provider, used when LLM_MODEL is unset
const (
	DefaultClaudeModel = "claude-3-5-sonnet-20241022"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// Config holds all application configuration
type Config struct {
	Graph      GraphConfig
	TimeSeries TimeSeriesConfig
	Completion CompletionConfig
	Redis      RedisConfig
	Audit      AuditConfig
	Auth       AuthConfig
	Server     ServerConfig
	Query      QueryConfig
}

// GraphConfig holds Neo4j connection settings
type GraphConfig struct {
	URI      string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// TimeSeriesConfig holds InfluxDB 2.x connection settings
type TimeSeriesConfig struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

// CompletionConfig holds language model settings
type CompletionConfig struct {
	Provider          string
	ClaudeAPIKey      string
	GeminiAPIKey      string
	Model             string
	FormatTemperature float64
	MaxTokens         int
	Timeout           time.Duration
}

// APIKey returns the key for the configured provider
func (c CompletionConfig) APIKey() string {
	if c.Provider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.ClaudeAPIKey
}

// RedisConfig holds Redis configuration for question history
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// AuditConfig holds PostgreSQL configuration for the audit trail
type AuditConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
}

// DSN renders the lib/pq connection string
func (a AuditConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(a.Username, a.Password),
		Host:     a.Host + ":" + a.Port,
		Path:     "/" + a.Database,
		RawQuery: "sslmode=" + a.SSLMode,
	}
	return u.String()
}

// AuthConfig holds authentication and authorization configuration
type AuthConfig struct {
	JWTSecret      string
	JWTExpiry      time.Duration
	RateLimit      int
	AllowAnonymous bool
	AdminPassword  string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port     string
	GinMode  string
	LogLevel string
}

// QueryConfig holds question processing configuration
type QueryConfig struct {
	Timeout          time.Duration
	CallTimeout      time.Duration
	MaxResultRows    int
	SchemaSampleSize int
	HistorySize      int
	HistoryTTL       time.Duration
}

// Setting records where one configuration value came from
type Setting struct {
	Key    string
	Value  string
	Source string
}

// SourceDefault marks a setting no provider supplied
const SourceDefault = "default"

var secretKeyMarkers = []string{"PASSWORD", "TOKEN", "SECRET", "API_KEY"}

// IsSecret reports whether the setting holds a credential
func (s Setting) IsSecret() bool {
	for _, marker := range secretKeyMarkers {
		if strings.Contains(s.Key, marker) {
			return true
		}
	}
	return false
}

// Display renders the value with credentials masked
func (s Setting) Display() string {
	if s.IsSecret() && s.Value != "" {
		return "********"
	}
	return s.Value
}

// Loader handles loading configuration from various sources
type Loader struct {
	provider SecretProvider

	mu       sync.Mutex
	settings map[string]Setting
}

// NewLoader creates a new configuration loader with the given secret provider
func NewLoader(provider SecretProvider) *Loader {
	return &Loader{
		provider: provider,
	}
}

// NewDefaultLoader creates a loader with the default provider chain:
// 1. Kubernetes secrets (if available)
// 2. File-based secrets (if available)
// 3. A .env file in the working directory (if present)
// 4. A YAML config file named by TWINQUERY_CONFIG, or ./twinquery.yaml
// 5. Environment variables (fallback)
func NewDefaultLoader() *Loader {
	configFile := os.Getenv("TWINQUERY_CONFIG")
	if configFile == "" {
		configFile = "twinquery.yaml"
	}

	return NewLoader(NewChainProvider(
		NewK8sProvider(""),
		NewFileProvider(DefaultSecretsDir),
		NewDotenvProvider(".env"),
		NewViperProvider(configFile),
		NewEnvProvider(),
	))
}

// Load loads the complete configuration
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}

	l.mu.Lock()
	l.settings = make(map[string]Setting)
	l.mu.Unlock()

	cfg.Graph = GraphConfig{
		URI:      l.getString(ctx, "NEO4J_URI", "bolt://localhost:7687"),
		Username: l.getString(ctx, "NEO4J_USER", "neo4j"),
		Password: l.getString(ctx, "NEO4J_PASSWORD", ""),
		Database: l.getString(ctx, "NEO4J_DATABASE", ""),
		Timeout:  l.getDuration(ctx, "NEO4J_TIMEOUT", 10*time.Second),
	}

	cfg.TimeSeries = TimeSeriesConfig{
		URL:     l.getString(ctx, "INFLUX_URL", "http://localhost:8086"),
		Token:   l.getString(ctx, "INFLUX_TOKEN", ""),
		Org:     l.getString(ctx, "INFLUX_ORG", "none"),
		Bucket:  l.getString(ctx, "INFLUX_BUCKET", "bucket"),
		Timeout: l.getDuration(ctx, "INFLUX_TIMEOUT", 10*time.Second),
	}

	provider := strings.ToLower(l.getString(ctx, "LLM_PROVIDER", ProviderClaude))
	defaultModel := DefaultClaudeModel
	if provider == ProviderGemini {
		defaultModel = DefaultGeminiModel
	}
	cfg.Completion = CompletionConfig{
		Provider:          provider,
		ClaudeAPIKey:      l.getString(ctx, "CLAUDE_API_KEY", ""),
		GeminiAPIKey:      l.getString(ctx, "GEMINI_API_KEY", ""),
		Model:             l.getString(ctx, "LLM_MODEL", defaultModel),
		FormatTemperature: l.getFloat(ctx, "LLM_FORMAT_TEMPERATURE", 0.7),
		MaxTokens:         l.getInt(ctx, "LLM_MAX_TOKENS", 1024),
		Timeout:           l.getDuration(ctx, "LLM_TIMEOUT", 30*time.Second),
	}

	cfg.Redis = RedisConfig{
		Enabled:  l.getBool(ctx, "REDIS_ENABLED", true),
		Addr:     l.getString(ctx, "REDIS_ADDR", "localhost:6379"),
		Password: l.getString(ctx, "REDIS_PASSWORD", ""),
		DB:       l.getInt(ctx, "REDIS_DB", 0),
	}

	cfg.Audit = AuditConfig{
		Enabled:  l.getBool(ctx, "AUDIT_ENABLED", false),
		Host:     l.getString(ctx, "DB_HOST", "localhost"),
		Port:     l.getString(ctx, "DB_PORT", "5432"),
		Database: l.getString(ctx, "DB_NAME", "twin_query"),
		Username: l.getString(ctx, "DB_USER", "twin_query"),
		Password: l.getString(ctx, "DB_PASSWORD", ""),
		SSLMode:  l.getString(ctx, "DB_SSLMODE", "disable"),
	}

	cfg.Auth = AuthConfig{
		JWTSecret:      l.getString(ctx, "JWT_SECRET", ""),
		JWTExpiry:      l.getDuration(ctx, "JWT_EXPIRY", 24*time.Hour),
		RateLimit:      l.getInt(ctx, "RATE_LIMIT", 30),
		AllowAnonymous: l.getBool(ctx, "ALLOW_ANONYMOUS", false),
		AdminPassword:  l.getString(ctx, "ADMIN_PASSWORD", ""),
	}

	cfg.Server = ServerConfig{
		Port:     l.getString(ctx, "PORT", "8080"),
		GinMode:  l.getString(ctx, "GIN_MODE", "debug"),
		LogLevel: l.getString(ctx, "LOG_LEVEL", "info"),
	}

	cfg.Query = QueryConfig{
		Timeout:          l.getDuration(ctx, "QUERY_TIMEOUT", 60*time.Second),
		CallTimeout:      l.getDuration(ctx, "CALL_TIMEOUT", 20*time.Second),
		MaxResultRows:    l.getInt(ctx, "MAX_RESULT_ROWS", 50),
		SchemaSampleSize: l.getInt(ctx, "SCHEMA_SAMPLE_SIZE", 3),
		HistorySize:      l.getInt(ctx, "HISTORY_SIZE", 20),
		HistoryTTL:       l.getDuration(ctx, "HISTORY_TTL", 7*24*time.Hour),
	}

	return cfg, nil
}

// lookup fetches key and records where the value came from. An empty or
// missing value records the default.
func (l *Loader) lookup(ctx context.Context, key, defaultValue string) (string, bool) {
	var value, source string
	if chain, ok := l.provider.(*ChainProvider); ok {
		value, source, _ = chain.Lookup(ctx, key)
	} else if v, err := l.provider.GetSecret(ctx, key); err == nil {
		value, source = v, l.provider.Name()
	}

	found := value != ""
	if !found {
		value, source = defaultValue, SourceDefault
	}

	l.mu.Lock()
	if l.settings == nil {
		l.settings = make(map[string]Setting)
	}
	l.settings[key] = Setting{Key: key, Value: value, Source: source}
	l.mu.Unlock()

	return value, found
}

// fallBack records that a supplied value could not be parsed
func (l *Loader) fallBack(key, defaultValue string) {
	l.mu.Lock()
	l.settings[key] = Setting{Key: key, Value: defaultValue, Source: SourceDefault}
	l.mu.Unlock()
}

func (l *Loader) getString(ctx context.Context, key, defaultValue string) string {
	value, _ := l.lookup(ctx, key, defaultValue)
	return value
}

func (l *Loader) getBool(ctx context.Context, key string, defaultValue bool) bool {
	value, found := l.lookup(ctx, key, strconv.FormatBool(defaultValue))
	if !found {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		l.fallBack(key, strconv.FormatBool(defaultValue))
		return defaultValue
	}
	return b
}

func (l *Loader) getInt(ctx context.Context, key string, defaultValue int) int {
	value, found := l.lookup(ctx, key, strconv.Itoa(defaultValue))
	if !found {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		l.fallBack(key, strconv.Itoa(defaultValue))
		return defaultValue
	}
	return i
}

func (l *Loader) getFloat(ctx context.Context, key string, defaultValue float64) float64 {
	formatted := strconv.FormatFloat(defaultValue, 'g', -1, 64)
	value, found := l.lookup(ctx, key, formatted)
	if !found {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		l.fallBack(key, formatted)
		return defaultValue
	}
	return f
}

func (l *Loader) getDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	value, found := l.lookup(ctx, key, defaultValue.String())
	if !found {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		l.fallBack(key, defaultValue.String())
		return defaultValue
	}
	return d
}

// Settings lists every value read by the last Load, sorted by key
func (l *Loader) Settings() []Setting {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Setting, 0, len(l.settings))
	for _, s := range l.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Sources lists the providers the loader can currently read from
func (l *Loader) Sources(ctx context.Context) []string {
	if chain, ok := l.provider.(*ChainProvider); ok {
		return chain.Available(ctx)
	}
	if l.provider.IsAvailable(ctx) {
		return []string{l.provider.Name()}
	}
	return nil
}

// MustLoad loads configuration and panics on error
func (l *Loader) MustLoad(ctx context.Context) *Config {
	cfg, err := l.Load(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
