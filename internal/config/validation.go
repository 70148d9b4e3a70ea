package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation error(s):\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate performs comprehensive validation on the configuration
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateGraph()...)
	errors = append(errors, c.validateTimeSeries()...)
	errors = append(errors, c.validateCompletion()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateAudit()...)
	errors = append(errors, c.validateAuth()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateQuery()...)

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// ValidatePipeline checks only what answering questions needs: both stores,
// the completion service and query limits. Command-line tools use it in
// place of Validate.
func (c *Config) ValidatePipeline() error {
	var errors ValidationErrors

	errors = append(errors, c.validateGraph()...)
	errors = append(errors, c.validateTimeSeries()...)
	errors = append(errors, c.validateCompletion()...)
	errors = append(errors, c.validateQuery()...)

	if errors.HasErrors() {
		return errors
	}
	return nil
}

var graphSchemes = map[string]bool{
	"bolt":      true,
	"bolt+s":    true,
	"bolt+ssc":  true,
	"neo4j":     true,
	"neo4j+s":   true,
	"neo4j+ssc": true,
}

func (c *Config) validateGraph() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.Graph.URI)
	if c.Graph.URI == "" || err != nil || !graphSchemes[u.Scheme] {
		errors = append(errors, ValidationError{
			Field:   "Graph.URI",
			Message: fmt.Sprintf("graph URI must use a bolt:// or neo4j:// scheme, got %q", c.Graph.URI),
		})
	}

	if c.Graph.Username == "" {
		errors = append(errors, ValidationError{
			Field:   "Graph.Username",
			Message: "graph username is required",
		})
	}

	if c.Graph.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Graph.Timeout",
			Message: "graph timeout must be positive",
		})
	}

	return errors
}

func (c *Config) validateTimeSeries() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.TimeSeries.URL)
	if c.TimeSeries.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, ValidationError{
			Field:   "TimeSeries.URL",
			Message: fmt.Sprintf("time-series URL must be http(s), got %q", c.TimeSeries.URL),
		})
	}

	if c.TimeSeries.Org == "" {
		errors = append(errors, ValidationError{
			Field:   "TimeSeries.Org",
			Message: "time-series organization is required",
		})
	}

	if c.TimeSeries.Bucket == "" {
		errors = append(errors, ValidationError{
			Field:   "TimeSeries.Bucket",
			Message: "time-series bucket is required",
		})
	}

	if c.TimeSeries.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "TimeSeries.Timeout",
			Message: "time-series timeout must be positive",
		})
	}

	return errors
}

func (c *Config) validateCompletion() []ValidationError {
	var errors []ValidationError

	switch c.Completion.Provider {
	case ProviderClaude, ProviderGemini:
		if c.Completion.APIKey() == "" {
			errors = append(errors, ValidationError{
				Field:   "Completion.APIKey",
				Message: fmt.Sprintf("an API key is required for provider %q", c.Completion.Provider),
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "Completion.Provider",
			Message: fmt.Sprintf("invalid provider: %s (must be 'claude' or 'gemini')", c.Completion.Provider),
		})
	}

	if c.Completion.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "Completion.Model",
			Message: "model is required",
		})
	}

	// Claude accepts up to 1.0, Gemini up to 2.0.
	maxTemperature := 1.0
	if c.Completion.Provider == ProviderGemini {
		maxTemperature = 2.0
	}
	if c.Completion.FormatTemperature <= 0 || c.Completion.FormatTemperature > maxTemperature {
		errors = append(errors, ValidationError{
			Field:   "Completion.FormatTemperature",
			Message: fmt.Sprintf("format temperature must be above 0 and at most %.1f", maxTemperature),
		})
	}

	if c.Completion.MaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Completion.MaxTokens",
			Message: "max tokens must be positive",
		})
	}

	if c.Completion.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Completion.Timeout",
			Message: "completion timeout must be positive",
		})
	}

	return errors
}

func (c *Config) validateRedis() []ValidationError {
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return []ValidationError{{
			Field:   "Redis.Addr",
			Message: "redis address is required when history is enabled",
		}}
	}
	return nil
}

func (c *Config) validateAudit() []ValidationError {
	if !c.Audit.Enabled {
		return nil
	}

	var errors []ValidationError
	required := map[string]string{
		"Audit.Host":     c.Audit.Host,
		"Audit.Port":     c.Audit.Port,
		"Audit.Database": c.Audit.Database,
		"Audit.Username": c.Audit.Username,
	}
	for _, field := range []string{"Audit.Host", "Audit.Port", "Audit.Database", "Audit.Username"} {
		if required[field] == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "required when the audit trail is enabled",
			})
		}
	}
	return errors
}

func (c *Config) validateAuth() []ValidationError {
	var errors []ValidationError

	if c.Auth.JWTSecret == "" {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTSecret",
			Message: "JWT secret is required",
		})
	}

	if c.Auth.JWTExpiry <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTExpiry",
			Message: "JWT expiry must be positive",
		})
	}

	if c.Auth.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "Auth.RateLimit",
			Message: "rate limit must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Port == "" {
		errors = append(errors, ValidationError{
			Field:   "Server.Port",
			Message: "server port is required",
		})
	}

	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		errors = append(errors, ValidationError{
			Field:   "Server.GinMode",
			Message: fmt.Sprintf("invalid gin mode: %s (must be 'debug', 'release', or 'test')", c.Server.GinMode),
		})
	}

	return errors
}

func (c *Config) validateQuery() []ValidationError {
	var errors []ValidationError

	if c.Query.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Query.Timeout",
			Message: "query timeout must be positive",
		})
	}

	if c.Query.CallTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Query.CallTimeout",
			Message: "call timeout must be positive",
		})
	} else if c.Query.Timeout > 0 && c.Query.CallTimeout > c.Query.Timeout {
		errors = append(errors, ValidationError{
			Field:   "Query.CallTimeout",
			Message: "call timeout must not exceed the overall query timeout",
		})
	}

	if c.Query.MaxResultRows <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Query.MaxResultRows",
			Message: "max result rows must be positive",
		})
	}

	if c.Query.SchemaSampleSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Query.SchemaSampleSize",
			Message: "schema sample size must be positive",
		})
	}

	if c.Query.HistorySize < 0 {
		errors = append(errors, ValidationError{
			Field:   "Query.HistorySize",
			Message: "history size must be non-negative",
		})
	}

	return errors
}

// ValidateProduction performs additional validation for production
// environments, rejecting insecure defaults
func (c *Config) ValidateProduction() error {
	var errors ValidationErrors

	if c.Graph.Password == "" || c.Graph.Password == "my_password" {
		errors = append(errors, ValidationError{
			Field:   "Graph.Password",
			Message: "production deployment must not use default or empty graph password",
		})
	}

	if c.TimeSeries.Token == "" {
		errors = append(errors, ValidationError{
			Field:   "TimeSeries.Token",
			Message: "production deployment requires an InfluxDB token",
		})
	}

	if c.Redis.Enabled && (c.Redis.Password == "" || c.Redis.Password == "changeme") {
		errors = append(errors, ValidationError{
			Field:   "Redis.Password",
			Message: "production deployment must not use default or empty Redis password",
		})
	}

	if c.Audit.Enabled && (c.Audit.Password == "" || c.Audit.Password == "changeme") {
		errors = append(errors, ValidationError{
			Field:   "Audit.Password",
			Message: "production deployment must not use default or empty database password",
		})
	}

	insecureJWTSecrets := map[string]bool{
		"":                                     true,
		"your-secret-key-change-in-production": true,
		"change-this-in-production":            true,
		"secret":                               true,
		"jwt-secret":                           true,
	}
	if insecureJWTSecrets[c.Auth.JWTSecret] {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTSecret",
			Message: "production deployment must not use default or insecure JWT secret",
		})
	}
	if len(c.Auth.JWTSecret) < 32 {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTSecret",
			Message: "JWT secret should be at least 32 characters for production use",
		})
	}

	if c.Auth.AdminPassword == "" {
		errors = append(errors, ValidationError{
			Field:   "Auth.AdminPassword",
			Message: "production deployment requires an admin password",
		})
	}

	if c.Server.GinMode != "release" {
		errors = append(errors, ValidationError{
			Field:   "Server.GinMode",
			Message: "production deployment should use 'release' mode",
		})
	}

	if c.Auth.AllowAnonymous {
		errors = append(errors, ValidationError{
			Field:   "Auth.AllowAnonymous",
			Message: "production deployment should not allow anonymous access",
		})
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// IsProduction determines if the current environment is production
// based on the GinMode setting
func (c *Config) IsProduction() bool {
	return c.Server.GinMode == "release"
}

// ValidateWithContext validates configuration and runs production checks if appropriate
func (c *Config) ValidateWithContext() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.IsProduction() {
		if err := c.ValidateProduction(); err != nil {
			return fmt.Errorf("production validation failed: %w", err)
		}
	}

	return nil
}
