package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// Config is built once at startup and injected into constructors.
// Nothing in the core reads the process environment directly.
type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`

	Server struct {
		HTTPPort        string        `mapstructure:"HTTPPort"`
		MetricsPort     string        `mapstructure:"metricsPort"`
		Timeout         time.Duration `mapstructure:"HTTPTimeout"`
		AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
		RateLimit       int           `mapstructure:"rateLimit"`
		RateLimitWindow time.Duration `mapstructure:"rateLimitWindow"`
	} `mapstructure:"server"`

	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			Password string `mapstructure:"password"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`

	JWT  JWTConfig  `mapstructure:"jwt"`
	Auth AuthConfig `mapstructure:"auth"`
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// JWTConfig carries the two token-class secrets and their expiry policies.
// Access and refresh secrets are independent so leaking one does not
// compromise the other token class.
type JWTConfig struct {
	SecretKey        string        `mapstructure:"secretKey"`
	RefreshSecretKey string        `mapstructure:"refreshSecretKey"`
	AccessTokenTTL   time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"refreshTokenTTL"`
	Issuer           string        `mapstructure:"issuer"`
	CookieTTL        time.Duration `mapstructure:"cookieTTL"`
}

// AuthConfig holds credential-lifecycle knobs for the auth workflow.
type AuthConfig struct {
	// BcryptCost is the fixed work factor for password hashing.
	BcryptCost int `mapstructure:"bcryptCost"`
	// CodeTTL is how long verification codes and OTPs stay usable.
	CodeTTL time.Duration `mapstructure:"codeTTL"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Secrets come from the environment; everything else may live in the file.
	v.SetEnvPrefix("AUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.JWT.SecretKey == "" || config.JWT.RefreshSecretKey == "" {
		return Config{}, fmt.Errorf("jwt secret keys must be configured (AUTH_JWT_SECRETKEY / AUTH_JWT_REFRESHSECRETKEY)")
	}
	if config.JWT.SecretKey == config.JWT.RefreshSecretKey {
		return Config{}, fmt.Errorf("access and refresh token secrets must differ")
	}

	return config, nil
}
