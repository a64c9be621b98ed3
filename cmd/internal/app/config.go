package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	authapi "github.com/A1dos-Creations/login-api-website/cmd/internal/auth/api"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/auth/session"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/billing"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/geo"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/google"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/live"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/mail"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/migrations"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/verify"
	"github.com/A1dos-Creations/login-api-website/cmd/security/password"

	"github.com/spf13/viper"
)

// ErrConfig is returned for invalid runtime configuration.
var ErrConfig = errors.New("invalid config")

// DefaultCORSOrigins are the browser and extension origins served by default.
var DefaultCORSOrigins = []string{
	"https://a1dos-creations.com",
	"https://a1dos-login.onrender.com",
	"https://api.a1dos-creations.com",
	"chrome-extension://bilnakhjjjkhhhdlcajijkodkhmanfbg",
	"chrome-extension://pafdkffolelojifgeepmjjofdendeojf",
	"http://127.0.0.1:3000",
}

// Config contains all runtime configuration, loaded from an optional .env file and the environment.
type Config struct {
	HTTPAddr  string `mapstructure:"STL_HTTP_ADDR"`
	LogLevel  string `mapstructure:"STL_LOG_LEVEL"`
	LogFormat string `mapstructure:"STL_LOG_FORMAT"`

	ReadHeaderTimeout time.Duration `mapstructure:"STL_HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `mapstructure:"STL_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"STL_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `mapstructure:"STL_HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout   time.Duration `mapstructure:"STL_HTTP_SHUTDOWN_TIMEOUT"`
	MaxHeaderBytes    int           `mapstructure:"STL_HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `mapstructure:"STL_HTTP_MAX_BODY_BYTES"`

	DatabaseURL string `mapstructure:"STL_DATABASE_URL"`
	DBSchema    string `mapstructure:"STL_DB_SCHEMA"`
	DBMaxConns  int32  `mapstructure:"STL_DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"STL_DB_MIN_CONNS"`
	AutoMigrate bool   `mapstructure:"STL_DB_AUTO_MIGRATE"`

	// ReadinessRequireDB makes /readyz fail unless the database is reachable.
	ReadinessRequireDB bool `mapstructure:"STL_READINESS_REQUIRE_DB"`

	CORSAllowedOrigins   []string `mapstructure:"STL_CORS_ALLOWED_ORIGINS"`
	CORSAllowCredentials bool     `mapstructure:"STL_CORS_ALLOW_CREDENTIALS"`
	CORSMaxAgeSeconds    int      `mapstructure:"STL_CORS_MAX_AGE_SECONDS"`
	TrustProxy           bool     `mapstructure:"STL_TRUST_PROXY"`

	TokenSecret          string        `mapstructure:"STL_TOKEN_SECRET"`
	TokenFormat          string        `mapstructure:"STL_TOKEN_FORMAT"`
	TokenIssuer          string        `mapstructure:"STL_TOKEN_ISSUER"`
	LoginTokenTTL        time.Duration `mapstructure:"STL_LOGIN_TOKEN_TTL"`
	ResetTokenTTL        time.Duration `mapstructure:"STL_PASSWORD_RESET_TOKEN_TTL"`
	TokenHMACKey         string        `mapstructure:"STL_TOKEN_HMAC_KEY"`
	RequireTokenHMAC     bool          `mapstructure:"STL_REQUIRE_TOKEN_HMAC"`
	AccountPageURL       string        `mapstructure:"STL_ACCOUNT_PAGE_URL"`
	LoginIPMax           int           `mapstructure:"STL_LOGIN_IP_MAX"`
	LoginIPWindow        time.Duration `mapstructure:"STL_LOGIN_IP_WINDOW"`
	CodeTTL              time.Duration `mapstructure:"STL_CODE_TTL"`
	CodeRequestMax       int           `mapstructure:"STL_CODE_REQUEST_MAX"`
	CodeRequestWindow    time.Duration `mapstructure:"STL_CODE_REQUEST_WINDOW"`
	CodeAttemptMax       int           `mapstructure:"STL_CODE_ATTEMPT_MAX"`
	RedisURL             string        `mapstructure:"STL_REDIS_URL"`
	WSAllowedOrigins     []string      `mapstructure:"STL_WS_ALLOWED_ORIGINS"`
	WSOriginRequired     bool          `mapstructure:"STL_WS_ORIGIN_REQUIRED"`
	WSInsecureSkipVerify bool          `mapstructure:"STL_WS_INSECURE_SKIP_VERIFY"`
	WSHeartbeat          time.Duration `mapstructure:"STL_WS_HEARTBEAT_INTERVAL"`

	SMTPHost        string        `mapstructure:"STL_SMTP_HOST"`
	SMTPPort        int           `mapstructure:"STL_SMTP_PORT"`
	SMTPUsername    string        `mapstructure:"STL_SMTP_USERNAME"`
	SMTPPassword    string        `mapstructure:"STL_SMTP_PASSWORD"`
	SMTPImplicitTLS bool          `mapstructure:"STL_SMTP_IMPLICIT_TLS"`
	SMTPTimeout     time.Duration `mapstructure:"STL_SMTP_TIMEOUT"`
	MailFrom        string        `mapstructure:"STL_MAIL_FROM"`

	PasswordMinLen     int    `mapstructure:"STL_PASSWORD_MIN_LEN"`
	PasswordMaxLen     int    `mapstructure:"STL_PASSWORD_MAX_LEN"`
	PasswordRejectWeak bool   `mapstructure:"STL_PASSWORD_REJECT_VERY_WEAK"`
	Argon2MemoryKiB    uint32 `mapstructure:"STL_ARGON2_MEMORY_KIB"`
	Argon2Iterations   uint32 `mapstructure:"STL_ARGON2_ITERATIONS"`
	Argon2Parallelism  uint8  `mapstructure:"STL_ARGON2_PARALLELISM"`

	GeoBaseURL string        `mapstructure:"STL_GEO_BASE_URL"`
	GeoTimeout time.Duration `mapstructure:"STL_GEO_TIMEOUT"`

	StripeSecretKey     string `mapstructure:"STL_STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STL_STRIPE_WEBHOOK_SECRET"`
	StripeAPIBase       string `mapstructure:"STL_STRIPE_API_BASE"`
	CheckoutSuccessURL  string `mapstructure:"STL_CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL   string `mapstructure:"STL_CHECKOUT_CANCEL_URL"`

	GoogleClientID     string `mapstructure:"STL_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"STL_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"STL_GOOGLE_REDIRECT_URL"`
}

func setDefaults(v *viper.Viper) {
	sess := session.DefaultConfig()
	codes := verify.DefaultConfig()
	authCfg := authapi.DefaultConfig()
	smtp := mail.DefaultConfig()
	g := geo.DefaultConfig()
	bill := billing.DefaultConfig()
	ws := live.DefaultConfig()
	pw := password.DefaultConfig()

	v.SetDefault("STL_HTTP_ADDR", "0.0.0.0:3002")
	v.SetDefault("STL_LOG_LEVEL", "info")
	v.SetDefault("STL_LOG_FORMAT", "json")

	v.SetDefault("STL_HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	v.SetDefault("STL_HTTP_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("STL_HTTP_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("STL_HTTP_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("STL_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("STL_HTTP_MAX_HEADER_BYTES", 1<<20)
	v.SetDefault("STL_HTTP_MAX_BODY_BYTES", authCfg.MaxBodyBytes)

	v.SetDefault("STL_DATABASE_URL", "")
	v.SetDefault("STL_DB_SCHEMA", "stl")
	v.SetDefault("STL_DB_MAX_CONNS", 10)
	v.SetDefault("STL_DB_MIN_CONNS", 0)
	v.SetDefault("STL_DB_AUTO_MIGRATE", true)
	v.SetDefault("STL_READINESS_REQUIRE_DB", true)

	v.SetDefault("STL_CORS_ALLOWED_ORIGINS", strings.Join(DefaultCORSOrigins, ","))
	v.SetDefault("STL_CORS_ALLOW_CREDENTIALS", false)
	v.SetDefault("STL_CORS_MAX_AGE_SECONDS", 600)
	v.SetDefault("STL_TRUST_PROXY", authCfg.TrustProxy)

	v.SetDefault("STL_TOKEN_SECRET", "")
	v.SetDefault("STL_TOKEN_FORMAT", sess.Format)
	v.SetDefault("STL_TOKEN_ISSUER", sess.Issuer)
	v.SetDefault("STL_LOGIN_TOKEN_TTL", sess.LoginTTL)
	v.SetDefault("STL_PASSWORD_RESET_TOKEN_TTL", sess.PasswordResetTTL)
	v.SetDefault("STL_TOKEN_HMAC_KEY", "")
	v.SetDefault("STL_REQUIRE_TOKEN_HMAC", false)
	v.SetDefault("STL_ACCOUNT_PAGE_URL", authCfg.AccountPageURL)
	v.SetDefault("STL_LOGIN_IP_MAX", authCfg.LoginIPMax)
	v.SetDefault("STL_LOGIN_IP_WINDOW", authCfg.LoginIPWindow)
	v.SetDefault("STL_CODE_TTL", codes.TTL)
	v.SetDefault("STL_CODE_REQUEST_MAX", codes.RequestMax)
	v.SetDefault("STL_CODE_REQUEST_WINDOW", codes.RequestWindow)
	v.SetDefault("STL_CODE_ATTEMPT_MAX", codes.AttemptMax)
	v.SetDefault("STL_REDIS_URL", "")
	v.SetDefault("STL_WS_ALLOWED_ORIGINS", "")
	v.SetDefault("STL_WS_ORIGIN_REQUIRED", false)
	v.SetDefault("STL_WS_INSECURE_SKIP_VERIFY", false)
	v.SetDefault("STL_WS_HEARTBEAT_INTERVAL", ws.HeartbeatInterval)

	v.SetDefault("STL_SMTP_HOST", "")
	v.SetDefault("STL_SMTP_PORT", smtp.Port)
	v.SetDefault("STL_SMTP_USERNAME", "")
	v.SetDefault("STL_SMTP_PASSWORD", "")
	v.SetDefault("STL_SMTP_IMPLICIT_TLS", false)
	v.SetDefault("STL_SMTP_TIMEOUT", smtp.Timeout)
	v.SetDefault("STL_MAIL_FROM", smtp.From)

	v.SetDefault("STL_PASSWORD_MIN_LEN", pw.Policy.MinLength)
	v.SetDefault("STL_PASSWORD_MAX_LEN", pw.Policy.MaxLength)
	v.SetDefault("STL_PASSWORD_REJECT_VERY_WEAK", pw.Policy.RejectVeryWeak)
	v.SetDefault("STL_ARGON2_MEMORY_KIB", pw.Params.MemoryKiB)
	v.SetDefault("STL_ARGON2_ITERATIONS", pw.Params.Iterations)
	v.SetDefault("STL_ARGON2_PARALLELISM", pw.Params.Parallelism)

	v.SetDefault("STL_GEO_BASE_URL", g.BaseURL)
	v.SetDefault("STL_GEO_TIMEOUT", g.Timeout)

	v.SetDefault("STL_STRIPE_SECRET_KEY", "")
	v.SetDefault("STL_STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("STL_STRIPE_API_BASE", bill.APIBase)
	v.SetDefault("STL_CHECKOUT_SUCCESS_URL", bill.SuccessURL)
	v.SetDefault("STL_CHECKOUT_CANCEL_URL", bill.CancelURL)

	v.SetDefault("STL_GOOGLE_CLIENT_ID", "")
	v.SetDefault("STL_GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("STL_GOOGLE_REDIRECT_URL", "")
}

// LoadConfig reads .env (if present), then the environment. Env vars override .env.
func LoadConfig() (Config, error) {
	return loadConfig(viper.New(), ".env")
}

func loadConfig(v *viper.Viper, envFile string) (Config, error) {
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		_ = v.ReadInConfig() // a missing .env is fine
	}
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)
	cfg.WSAllowedOrigins = splitList(cfg.WSAllowedOrigins)

	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check validates the process-level settings; component settings are checked by their owners.
func (c Config) Check() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("%w: STL_HTTP_ADDR must be set", ErrConfig)
	}
	if !migrations.ValidSchema(c.DBSchema) {
		return fmt.Errorf("%w: STL_DB_SCHEMA %q is not a plain identifier", ErrConfig, c.DBSchema)
	}
	if c.DBMinConns < 0 || (c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns) {
		return fmt.Errorf("%w: STL_DB_MIN_CONNS must be between 0 and STL_DB_MAX_CONNS", ErrConfig)
	}
	return nil
}

// splitList flattens comma-separated entries, which is how list values arrive from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, p := range strings.Split(item, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func (c Config) sessionConfig() session.Config {
	s := session.DefaultConfig()
	s.Secret = c.TokenSecret
	s.Format = c.TokenFormat
	s.Issuer = c.TokenIssuer
	s.LoginTTL = c.LoginTokenTTL
	s.PasswordResetTTL = c.ResetTokenTTL
	return s
}

func (c Config) passwordConfig() password.Config {
	p := password.DefaultConfig()
	p.Policy.MinLength = c.PasswordMinLen
	p.Policy.MaxLength = c.PasswordMaxLen
	p.Policy.RejectVeryWeak = c.PasswordRejectWeak
	p.Params.MemoryKiB = c.Argon2MemoryKiB
	p.Params.Iterations = c.Argon2Iterations
	p.Params.Parallelism = c.Argon2Parallelism
	return p
}

func (c Config) apiConfig() authapi.Config {
	a := authapi.DefaultConfig()
	a.TrustProxy = c.TrustProxy
	a.MaxBodyBytes = c.MaxBodyBytes
	a.AccountPageURL = c.AccountPageURL
	a.LoginIPMax = c.LoginIPMax
	a.LoginIPWindow = c.LoginIPWindow
	return a
}

func (c Config) verifyConfig() verify.Config {
	v := verify.DefaultConfig()
	v.TTL = c.CodeTTL
	v.RequestMax = c.CodeRequestMax
	v.RequestWindow = c.CodeRequestWindow
	v.AttemptMax = c.CodeAttemptMax
	return v
}

func (c Config) liveConfig() live.Config {
	l := live.DefaultConfig()
	l.AllowedOrigins = c.WSAllowedOrigins
	if len(l.AllowedOrigins) == 0 {
		l.AllowedOrigins = c.CORSAllowedOrigins
	}
	l.OriginRequired = c.WSOriginRequired
	l.InsecureSkipVerify = c.WSInsecureSkipVerify
	l.HeartbeatInterval = c.WSHeartbeat
	return l
}

func (c Config) mailConfig() mail.Config {
	m := mail.DefaultConfig()
	m.Host = c.SMTPHost
	m.Port = c.SMTPPort
	m.Username = c.SMTPUsername
	m.Password = c.SMTPPassword
	m.ImplicitTLS = c.SMTPImplicitTLS
	m.Timeout = c.SMTPTimeout
	m.From = c.MailFrom
	return m
}

func (c Config) geoConfig() geo.Config {
	return geo.Config{BaseURL: c.GeoBaseURL, Timeout: c.GeoTimeout}
}

func (c Config) billingConfig() billing.Config {
	b := billing.DefaultConfig()
	b.SecretKey = c.StripeSecretKey
	b.WebhookSecret = c.StripeWebhookSecret
	b.APIBase = c.StripeAPIBase
	b.SuccessURL = c.CheckoutSuccessURL
	b.CancelURL = c.CheckoutCancelURL
	return b
}

func (c Config) googleConfig() google.Config {
	g := google.DefaultConfig()
	g.ClientID = c.GoogleClientID
	g.ClientSecret = c.GoogleClientSecret
	g.RedirectURL = c.GoogleRedirectURL
	return g
}
