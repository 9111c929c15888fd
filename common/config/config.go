package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "CHECKIN"

	EnvironmentDevelopment = "development"

	// DevelopmentJWTSecret is only accepted when server.environment is development.
	DevelopmentJWTSecret = "dev-secret-change-me"

	minProductionSecretLength = 32
)

type Config struct {
	AWS      AWSConfig
	DynamoDB DynamoDBConfig
	Server   ServerConfig
	Auth     AuthConfig
	NATS     NATSConfig
	Redis    RedisConfig
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

type DynamoDBConfig struct {
	UsersTable       string
	CheckInsTable    string
	MaxRetries       int
	ReadCapacity     int64
	WriteCapacity    int64
	UseLocalEndpoint bool
}

type ServerConfig struct {
	HTTPPort     int
	AuthPort     int
	GRPCPort     int
	AuthGRPCPort int
	Environment  string
	LogLevel     string
	LogFormat    string
	CORSOrigin   string
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

type NATSConfig struct {
	URL                  string
	MaxReconnect         int
	ReconnectWaitSeconds int
	TimeoutSeconds       int
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	UserTTL  time.Duration
}

// Load reads config.yaml from ./config, the working directory and configPath,
// then applies CHECKIN_* environment overrides. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.accessKeyID", "")
	v.SetDefault("aws.secretAccessKey", "")
	v.SetDefault("aws.endpoint", "http://localhost:8000")

	v.SetDefault("dynamodb.usersTable", "checkin-app-users")
	v.SetDefault("dynamodb.checkInsTable", "checkin-app-checkins")
	v.SetDefault("dynamodb.maxRetries", 3)
	v.SetDefault("dynamodb.readCapacity", 5)
	v.SetDefault("dynamodb.writeCapacity", 5)
	v.SetDefault("dynamodb.useLocalEndpoint", false)

	v.SetDefault("server.httpPort", 8080)
	v.SetDefault("server.authPort", 3001)
	v.SetDefault("server.grpcPort", 0)
	v.SetDefault("server.authGrpcPort", 0)
	v.SetDefault("server.environment", EnvironmentDevelopment)
	v.SetDefault("server.logLevel", "info")
	v.SetDefault("server.logFormat", "json")
	v.SetDefault("server.corsOrigin", "*")

	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.accessTokenTTL", 15*time.Minute)
	v.SetDefault("auth.refreshTokenTTL", 7*24*time.Hour)
	v.SetDefault("auth.bcryptCost", 12)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.maxReconnect", 10)
	v.SetDefault("nats.reconnectWaitSeconds", 2)
	v.SetDefault("nats.timeoutSeconds", 5)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.userTTL", 5*time.Minute)
}

// Validate rejects configurations that cannot safely sign tokens.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required")
	}

	if !c.IsDevelopment() {
		if c.Auth.JWTSecret == DevelopmentJWTSecret {
			return errors.New("auth.jwtSecret uses the development default outside development")
		}
		if len(c.Auth.JWTSecret) < minProductionSecretLength {
			return fmt.Errorf("auth.jwtSecret must be at least %d bytes outside development", minProductionSecretLength)
		}
	}

	if c.DynamoDB.UsersTable == "" || c.DynamoDB.CheckInsTable == "" {
		return errors.New("dynamodb table names are required")
	}

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvironmentDevelopment
}

func (c *Config) EventsEnabled() bool {
	return c.NATS.URL != ""
}

func (c *Config) CacheEnabled() bool {
	return c.Redis.Address != ""
}
