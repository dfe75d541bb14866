package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process and msgctl.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Twilio  TwilioConfig
	AI      AIConfig
	Engine  EngineConfig
	Inbound InboundConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string

	// ValidateSignature enables X-Twilio-Signature checks on inbound webhooks.
	// PublicBaseURL must then be the externally visible scheme://host the provider posts to.
	ValidateSignature bool
	PublicBaseURL     string

	// SendRatePerSecond paces outbound REST sends. Long codes are limited to ~1 msg/s.
	SendRatePerSecond float64
}

// AIConfig selects the hosted model used for classification and reply generation.
type AIConfig struct {
	Provider string // openai, anthropic, ollama
	Model    string
	APIKey   string
	BaseURL  string

	ClassifierTimeout time.Duration
	ResponderTimeout  time.Duration
}

type EngineConfig struct {
	// HistoryWindow is the number of prior turns handed to the responder.
	HistoryWindow int
	// DefaultRegion is the ISO 3166 region used to infer a country code for national numbers.
	DefaultRegion string
}

type InboundConfig struct {
	// ConcurrencyLimit caps in-flight webhook invocations per tenant.
	ConcurrencyLimit int
	// DedupTTL bounds how long a provider message sid is remembered in Redis.
	DedupTTL time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.ValidateSignature = optBool("TWILIO_VALIDATE_SIGNATURE")
	c.Twilio.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("TWILIO_PUBLIC_BASE_URL")), "/")
	{
		f, err := optFloat("TWILIO_SEND_RATE")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Twilio.SendRatePerSecond = f
	}

	c.AI.Provider = strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))
	c.AI.Model = strings.TrimSpace(os.Getenv("AI_MODEL"))
	c.AI.APIKey = os.Getenv("AI_API_KEY")
	c.AI.BaseURL = strings.TrimSpace(os.Getenv("AI_BASE_URL"))
	c.AI.ClassifierTimeout = optDuration("AI_CLASSIFIER_TIMEOUT")
	c.AI.ResponderTimeout = optDuration("AI_RESPONDER_TIMEOUT")

	{
		n, err := optInt("ENGINE_HISTORY_WINDOW")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Engine.HistoryWindow = n
	}
	c.Engine.DefaultRegion = strings.ToUpper(strings.TrimSpace(os.Getenv("ENGINE_DEFAULT_REGION")))

	{
		n, err := optInt("INBOUND_CONCURRENCY_LIMIT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Inbound.ConcurrencyLimit = n
	}
	c.Inbound.DedupTTL = optDuration("INBOUND_DEDUP_TTL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the config and fills defaults in place. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.IsProduction() {
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required in production"))
		}
		if !c.Twilio.ValidateSignature {
			errs = append(errs, errors.New("TWILIO_VALIDATE_SIGNATURE must be enabled in production"))
		}
	}
	if c.Twilio.ValidateSignature && c.Twilio.PublicBaseURL == "" {
		errs = append(errs, errors.New("TWILIO_PUBLIC_BASE_URL is required when signature validation is enabled"))
	}
	if c.Twilio.SendRatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("TWILIO_SEND_RATE must be >= 0, got %v", c.Twilio.SendRatePerSecond))
	} else if c.Twilio.SendRatePerSecond == 0 {
		c.Twilio.SendRatePerSecond = 1
	}

	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
	}
	if !isValidAIProvider(c.AI.Provider) {
		errs = append(errs, fmt.Errorf("AI_PROVIDER must be one of openai, anthropic, ollama, got %q", c.AI.Provider))
	}
	if c.AI.Provider != "ollama" && c.AI.APIKey == "" && c.IsProduction() {
		errs = append(errs, errors.New("AI_API_KEY is required in production"))
	}
	if c.AI.ClassifierTimeout <= 0 {
		c.AI.ClassifierTimeout = 5 * time.Second
	}
	if c.AI.ResponderTimeout <= 0 {
		c.AI.ResponderTimeout = 10 * time.Second
	}

	if c.Engine.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("ENGINE_HISTORY_WINDOW must be >= 0, got %d", c.Engine.HistoryWindow))
	} else if c.Engine.HistoryWindow == 0 {
		c.Engine.HistoryWindow = 10
	}
	if c.Engine.DefaultRegion == "" {
		c.Engine.DefaultRegion = "US"
	}
	if len(c.Engine.DefaultRegion) != 2 {
		errs = append(errs, fmt.Errorf("ENGINE_DEFAULT_REGION must be a two-letter region code, got %q", c.Engine.DefaultRegion))
	}

	if c.Inbound.ConcurrencyLimit < 0 {
		errs = append(errs, fmt.Errorf("INBOUND_CONCURRENCY_LIMIT must be >= 0, got %d", c.Inbound.ConcurrencyLimit))
	} else if c.Inbound.ConcurrencyLimit == 0 {
		c.Inbound.ConcurrencyLimit = 50
	}
	if c.Inbound.DedupTTL <= 0 {
		c.Inbound.DedupTTL = 24 * time.Hour
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// PostgresURL is the URL form of the DSN, required by golang-migrate.
func (c Config) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optFloat(key string) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

func optBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

// optDuration returns 0 when unset or unparsable; Validate applies defaults.
func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func isValidAIProvider(v string) bool {
	switch v {
	case "openai", "anthropic", "ollama":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
