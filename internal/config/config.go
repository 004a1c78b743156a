package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"boomscore/identity/internal/security"
)

const EnvProduction = "production"

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN              string
	MaxOpen          int
	MaxIdle          int
	ConnMaxLifetime  time.Duration
	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
	LockTimeout      time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketAvatars string
	UseSSL        bool
	Region        string
	PublicURL     string
}

type SecurityConfig struct {
	JWTSecret        string
	JWTExpiresIn     string
	RefreshExpiresIn string
	SessionBinding   bool
	MaxSessions      int
	LoginMaxAttempts int
	LoginWindow      time.Duration
}

type CookieConfig struct {
	Name        string
	RefreshName string
	Domain      string
	SameSite    string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	FrontendURL      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Cookie           CookieConfig
	Google           GoogleConfig
	Worker           WorkerConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

// envAliases maps config keys to the plain environment variable names deployments
// already use. BOOMSCORE_<SECTION>_<KEY> works for every key on top of these.
var envAliases = map[string][]string{
	"environment":           {"APP_ENV", "NODE_ENV"},
	"frontendurl":           {"FRONTEND_URL"},
	"postgres.dsn":          {"DATABASE_URL"},
	"redis.addr":            {"REDIS_ADDR"},
	"redis.password":        {"REDIS_PASSWORD"},
	"security.jwtsecret":    {"JWT_SECRET"},
	"security.jwtexpiresin": {"JWT_EXPIRES_IN"},
	"cookie.name":           {"AUTH_COOKIE_NAME"},
	"cookie.domain":         {"AUTH_COOKIE_DOMAIN"},
	"cookie.samesite":       {"AUTH_COOKIE_SAMESITE"},
	"google.clientid":       {"GOOGLE_CLIENT_ID"},
	"google.clientsecret":   {"GOOGLE_CLIENT_SECRET"},
	"google.callbackurl":    {"GOOGLE_CALLBACK_URL"},
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("BOOMSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("frontendurl", "http://localhost:3000")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.connecttimeout", "5s")
	v.SetDefault("postgres.statementtimeout", "5s")
	v.SetDefault("postgres.locktimeout", "2s")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.bucketavatars", "boomscore-avatars")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtexpiresin", "15m")
	v.SetDefault("security.refreshexpiresin", "30d")
	v.SetDefault("security.sessionbinding", true)
	v.SetDefault("security.maxsessions", 10)
	v.SetDefault("security.loginmaxattempts", 10)
	v.SetDefault("security.loginwindow", "15m")

	v.SetDefault("cookie.name", "bs_token")
	v.SetDefault("cookie.refreshname", "bs_refresh")
	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.samesite", "lax")

	v.SetDefault("google.clientid", "")
	v.SetDefault("google.clientsecret", "")
	v.SetDefault("google.callbackurl", "http://localhost:8080/auth/google/callback")

	v.SetDefault("worker.stream", "identity:maintenance")
	v.SetDefault("worker.group", "identity-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")

	v.SetDefault("logging.level", "")
}

func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvProduction)
}

// AccessTTL is the lifetime of signed access tokens and of the access cookie.
func (c *AppConfig) AccessTTL() time.Duration {
	return security.ParseTTL(c.Security.JWTExpiresIn, security.DefaultTTL)
}

// RefreshTTL is the lifetime of refresh tokens and of the sessions they renew.
func (c *AppConfig) RefreshTTL() time.Duration {
	return security.ParseTTL(c.Security.RefreshExpiresIn, 30*24*time.Hour)
}

// Validate rejects configurations that are unsafe to serve. Outside production it
// repairs what it can and reports each repair as a warning.
func (c *AppConfig) Validate() ([]string, error) {
	var warnings []string

	if strings.TrimSpace(c.Security.JWTSecret) == "" {
		if c.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		c.Security.JWTSecret = secret
		warnings = append(warnings, "JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	} else if c.IsProduction() && len(c.Security.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters in production")
	}

	if c.IsProduction() && strings.TrimSpace(c.Postgres.DSN) == "" {
		return nil, errors.New("DATABASE_URL is required in production")
	}

	if c.Security.MaxSessions <= 0 {
		c.Security.MaxSessions = 10
	}

	switch strings.ToLower(strings.TrimSpace(c.Cookie.SameSite)) {
	case "lax", "strict":
	case "none":
		if !c.IsProduction() {
			warnings = append(warnings, "AUTH_COOKIE_SAMESITE=none forces Secure cookies; they are only stored over https or on localhost")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("AUTH_COOKIE_SAMESITE %q not recognised, using lax", c.Cookie.SameSite))
		c.Cookie.SameSite = "lax"
	}

	return warnings, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
