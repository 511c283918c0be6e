package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/EternisAI/certpass/internal/api/http"
	"github.com/EternisAI/certpass/internal/auth"
	"github.com/EternisAI/certpass/internal/db"
	"github.com/EternisAI/certpass/internal/ratelimit"
	"github.com/EternisAI/certpass/internal/verification"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log          LogConfig
	Http         http.Config
	DB           db.Config           `mapstructure:"db"`
	Redis        RedisConfig         `mapstructure:"redis"`
	Security     SecurityConfig      `mapstructure:"security"`
	Verification verification.Config `mapstructure:"verification"`
	Api          ApiConfig           `mapstructure:"api"`
	Admin        AdminConfig         `mapstructure:"admin"`
	Certificate  CertificateConfig   `mapstructure:"certificate"`
}

// RedisConfig switches the rate limiter from PostgreSQL to Redis when enabled.
type RedisConfig struct {
	Enabled bool `mapstructure:"enabled"`

	ratelimit.RedisConfig `mapstructure:",squash"`
}

type SecurityConfig struct {
	JWT              auth.JWTConfig `mapstructure:"jwt"`
	SigningKey       string         `mapstructure:"signing_key"`
	SignatureCheck   bool           `mapstructure:"signature_check"`
	RateLimitSalt    string         `mapstructure:"rate_limit_salt"`
	PurgeProbability float64        `mapstructure:"purge_probability"`
}

type ApiConfig struct {
	MaxSkew      time.Duration `mapstructure:"max_skew"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
}

type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password" json:"-"`
}

type CertificateConfig struct {
	IDPrefix string `mapstructure:"id_prefix"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/certpass-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	_ = viper.BindEnv("db.url", "DATABASE_URL")
	_ = viper.BindEnv("security.jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("admin.password", "ADMIN_PASSWORD")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	// Initialize logger with configured log level
	initLogger(config.Log.Level)

	// Pretty print config as JSON (only at DEBUG level)
	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		redacted := config
		redacted.Security = SecurityConfig{SignatureCheck: config.Security.SignatureCheck}
		redacted.Redis.Password = ""
		redacted.DB.Url = ""
		configJSON, err := json.MarshalIndent(redacted, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}

func setDefaults() {
	viper.SetDefault("log.level", LOG_LEVEL_INFO)
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.base_url", "http://localhost:8080")
	viper.SetDefault("http.qr_size", 256)
	viper.SetDefault("db.schema", "public")
	viper.SetDefault("verification.max_requests", verification.DefaultMaxRequests)
	viper.SetDefault("verification.window", verification.DefaultWindow)
	viper.SetDefault("verification.store_timeout", verification.DefaultStoreTimeout)
	viper.SetDefault("api.max_skew", 300*time.Second)
	viper.SetDefault("api.store_timeout", 2*time.Second)
	viper.SetDefault("security.jwt.expiry", 12*time.Hour)
	viper.SetDefault("security.signature_check", true)
	viper.SetDefault("security.purge_probability", 0.01)
	viper.SetDefault("certificate.id_prefix", "CP")
	viper.SetDefault("admin.username", "admin")
}
