package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/database"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration of the backend.
type Config struct {
	App        AppConfig
	Database   database.Config
	AutoSchema bool
	JWT        JWTConfig
	SMTP       services.SMTPConfig
	Cloudinary CloudinaryConfig
	Google     GoogleConfig
	Redis      RedisConfig
	Tracing    TracingConfig
	RateLimit  RateLimitConfig
	Admin      AdminConfig
	Bank       services.BankDetails

	FeeTablePath string
}

type AppConfig struct {
	Env            string
	Port           string
	FrontendURL    string
	AllowedOrigins []string
	LogLevel       string
	LogPretty      bool
	ShutdownGrace  time.Duration
}

// Development reports whether internal error details may reach clients.
func (a AppConfig) Development() bool {
	return strings.EqualFold(a.Env, "development")
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// CloudinaryConfig accepts either a CLOUDINARY_URL or the three credentials.
type CloudinaryConfig struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
}

// Enabled reports whether uploads can be configured.
func (c CloudinaryConfig) Enabled() bool {
	return c.URL != "" || (c.CloudName != "" && c.APIKey != "" && c.APISecret != "")
}

type GoogleConfig struct {
	ClientID string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type TracingConfig struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type AdminConfig struct {
	PrimaryEmail string
}

var defaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"https://societycis.org",
	"https://www.societycis.org",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:            utils.Getenv("APP_ENV", utils.Getenv("NODE_ENV", "production")),
			Port:           utils.Getenv("PORT", "5000"),
			FrontendURL:    strings.TrimRight(utils.Getenv("FRONTEND_URL", "http://localhost:5173"), "/"),
			AllowedOrigins: utils.GetenvList("CORS_ALLOWED_ORIGINS", defaultOrigins),
			LogLevel:       utils.Getenv("LOG_LEVEL", "info"),
			LogPretty:      utils.GetenvBool("LOG_PRETTY", false),
			ShutdownGrace:  utils.GetenvDuration("SHUTDOWN_GRACE", 15*time.Second),
		},
		Database:   databaseFromEnv(),
		AutoSchema: utils.GetenvBool("DB_AUTO_MIGRATE", true),
		JWT: JWTConfig{
			Secret: utils.Getenv("JWT_SECRET", ""),
			TTL:    utils.GetenvDuration("JWT_TTL", utils.DefaultTokenTTL),
		},
		SMTP: services.SMTPConfig{
			Host:       utils.Getenv("SMTP_HOST", "smtp.gmail.com"),
			Port:       utils.GetenvInt("SMTP_PORT", 465),
			Username:   utils.Getenv("EMAIL_USER", ""),
			Password:   utils.Getenv("EMAIL_PASSWORD", utils.Getenv("EMAIL_PASS", "")),
			From:       utils.Getenv("EMAIL_FROM", utils.Getenv("EMAIL_USER", "")),
			FromName:   utils.Getenv("EMAIL_FROM_NAME", "Society for Cyber Intelligent Systems"),
			UseSSL:     utils.GetenvBool("SMTP_SSL", true),
			RequireTLS: utils.GetenvBool("SMTP_REQUIRE_TLS", true),
		},
		Cloudinary: CloudinaryConfig{
			URL:       utils.Getenv("CLOUDINARY_URL", ""),
			CloudName: utils.Getenv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    utils.Getenv("CLOUDINARY_API_KEY", ""),
			APISecret: utils.Getenv("CLOUDINARY_API_SECRET", ""),
		},
		Google: GoogleConfig{
			ClientID: utils.Getenv("GOOGLE_CLIENT_ID", ""),
		},
		Redis: RedisConfig{
			Enabled:  utils.GetenvBool("REDIS_ENABLED", false),
			Addr:     utils.Getenv("REDIS_ADDR", "localhost:6379"),
			Password: utils.Getenv("REDIS_PASSWORD", ""),
			DB:       utils.GetenvInt("REDIS_DB", 0),
			Prefix:   utils.Getenv("REDIS_PREFIX", "scis:"),
		},
		Tracing: TracingConfig{
			Endpoint:    utils.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: utils.Getenv("OTEL_SERVICE_NAME", "scis-backend"),
			Insecure:    utils.GetenvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
		RateLimit: RateLimitConfig{
			RPS:   float64(utils.GetenvInt("AUTH_RATE_LIMIT_RPS", 2)),
			Burst: utils.GetenvInt("AUTH_RATE_LIMIT_BURST", 10),
		},
		Admin: AdminConfig{
			PrimaryEmail: utils.NormalizeEmail(utils.Getenv("PRIMARY_ADMIN_EMAIL", services.DefaultPrimaryAdminEmail)),
		},
		Bank: services.BankDetails{
			AccountName:   utils.Getenv("BANK_ACCOUNT_NAME", ""),
			AccountNumber: utils.Getenv("BANK_ACCOUNT_NUMBER", ""),
			IFSC:          utils.Getenv("BANK_IFSC", ""),
			BankName:      utils.Getenv("BANK_NAME", ""),
			UPIID:         utils.Getenv("BANK_UPI_ID", ""),
		},
		FeeTablePath: utils.Getenv("FEE_TABLE_PATH", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func databaseFromEnv() database.Config {
	return database.Config{
		Host:         utils.Getenv("DB_HOST", "localhost"),
		Port:         utils.Getenv("DB_PORT", "5432"),
		User:         utils.Getenv("DB_USER", "postgres"),
		Password:     utils.Getenv("DB_PASSWORD", ""),
		Name:         utils.Getenv("DB_NAME", "scis"),
		SSLMode:      utils.Getenv("DB_SSLMODE", "disable"),
		MaxOpenConns: utils.GetenvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns: utils.GetenvInt("DB_MAX_IDLE_CONNS", 5),
	}
}

// LoadDatabase reads only the database settings, for maintenance commands
// that do not serve HTTP.
func LoadDatabase() (database.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return database.Config{}, fmt.Errorf("reading .env: %w", err)
	}
	return databaseFromEnv(), nil
}

func (c *Config) validate() error {
	var problems []string
	if len(c.JWT.Secret) < 16 {
		problems = append(problems, "JWT_SECRET must be set to at least 16 characters")
	}
	if c.Database.Password == "" && !c.App.Development() {
		problems = append(problems, "DB_PASSWORD is required outside development")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		problems = append(problems, "AUTH_RATE_LIMIT_RPS and AUTH_RATE_LIMIT_BURST must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// feeFile is the on-disk shape of a fee table override.
type feeFile struct {
	Currency string                             `yaml:"currency"`
	Fees     map[string]int                     `yaml:"fees"`
	Tiers    map[string]services.TierDescriptor `yaml:"tiers"`
}

// LoadFeeTable returns the fee table at path, or the built-in table when path
// is empty or the file does not exist.
func LoadFeeTable(path string) (*services.FeeTable, error) {
	if path == "" {
		return services.DefaultFeeTable(), nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		utils.LogWarn("Fee table file not found, using built-in fees", map[string]interface{}{"path": path})
		return services.DefaultFeeTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading fee table: %w", err)
	}
	return ParseFeeTable(raw)
}

// ParseFeeTable decodes a YAML fee table.
func ParseFeeTable(raw []byte) (*services.FeeTable, error) {
	var f feeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing fee table: %w", err)
	}
	table, err := services.NewDescribedFeeTable(f.Fees, f.Currency, f.Tiers)
	if err != nil {
		return nil, fmt.Errorf("invalid fee table: %w", err)
	}
	return table, nil
}
