package config

import (
	"errors"
	"strings"
	"time"

	"github.com/khanghh/plantgate/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr     = ":3000"
	DefaultHealthAddr     = params.HealthCheckServerAddr
	DefaultConfigFile     = "config.yaml"
	DefaultJWTAlgorithm   = "EdDSA"
	DefaultExternalKeyPEM = "keys/external_private_key.pem"
)

var (
	ErrMissingDsn      = errors.New("mysql.dsn is required")
	ErrMissingCacheKey = errors.New("cacheKey is required")
)

type MySQLConfig struct {
	Dsn             string   `mapstructure:"dsn"`
	Replicas        []string `mapstructure:"replicas"`
	TablePrefix     string   `mapstructure:"tablePrefix"`
	MaxIdleConns    int      `mapstructure:"maxIdleConns"`
	MaxOpenConns    int      `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int      `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int      `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type JWTConfig struct {
	Algorithm            string        `mapstructure:"algorithm"`
	PrivateKey           string        `mapstructure:"privateKey"`
	PublicKey            string        `mapstructure:"publicKey"`
	PrivateKeyPath       string        `mapstructure:"privateKeyPath"`
	PublicKeyPath        string        `mapstructure:"publicKeyPath"`
	AccessTokenTTL       time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL      time.Duration `mapstructure:"refreshTokenTTL"`
	RefreshTokenRotation bool          `mapstructure:"refreshTokenRotation"`
}

// ExternalConfig describes the identity provider of the external system
// whose credentials are cached per user.
type ExternalConfig struct {
	LoginURL       string        `mapstructure:"loginURL"`
	InstanceURL    string        `mapstructure:"instanceURL"`
	ClientID       string        `mapstructure:"clientID"`
	PrivateKey     string        `mapstructure:"privateKey"`
	PrivateKeyPath string        `mapstructure:"privateKeyPath"`
	CacheTTL       time.Duration `mapstructure:"cacheTTL"`
	HTTPTimeout    time.Duration `mapstructure:"httpTimeout"`
}

func (c *ExternalConfig) Enabled() bool {
	return c.LoginURL != "" && c.ClientID != ""
}

type Config struct {
	Debug        bool           `mapstructure:"debug"`
	ListenAddr   string         `mapstructure:"listenAddr"`
	HealthAddr   string         `mapstructure:"healthAddr"`
	AllowOrigins []string       `mapstructure:"allowOrigins"`
	CacheKey     string         `mapstructure:"cacheKey"`
	MySQL        MySQLConfig    `mapstructure:"mysql"`
	Redis        RedisConfig    `mapstructure:"redis"`
	JWT          JWTConfig      `mapstructure:"jwt"`
	External     ExternalConfig `mapstructure:"external"`
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.HealthAddr == "" {
		c.HealthAddr = DefaultHealthAddr
	}
	if c.MySQL.Dsn == "" {
		return ErrMissingDsn
	}
	if c.CacheKey == "" {
		return ErrMissingCacheKey
	}
	if c.JWT.Algorithm == "" {
		c.JWT.Algorithm = DefaultJWTAlgorithm
	}
	if c.JWT.PrivateKeyPath == "" {
		c.JWT.PrivateKeyPath = params.DefaultPrivateKeyPath
	}
	if c.JWT.PublicKeyPath == "" {
		c.JWT.PublicKeyPath = params.DefaultPublicKeyPath
	}
	if c.JWT.AccessTokenTTL <= 0 {
		c.JWT.AccessTokenTTL = params.AccessTokenExpiration
	}
	if c.JWT.RefreshTokenTTL <= 0 {
		c.JWT.RefreshTokenTTL = params.RefreshTokenExpiration
	}
	c.External.LoginURL = strings.TrimRight(c.External.LoginURL, "/")
	if c.External.InstanceURL == "" {
		c.External.InstanceURL = c.External.LoginURL
	}
	if c.External.PrivateKeyPath == "" {
		c.External.PrivateKeyPath = DefaultExternalKeyPEM
	}
	if c.External.CacheTTL <= 0 {
		c.External.CacheTTL = params.ExternalTokenCacheTTL
	}
	if c.External.HTTPTimeout <= 0 {
		c.External.HTTPTimeout = params.ExternalHTTPTimeout
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
