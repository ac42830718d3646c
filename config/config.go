package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/joho/godotenv"
)

type Config struct {
	Port int    `env:"PORT" envDefault:"8080"`
	Dsn  string `env:"DSN"`

	AuthSecret   string        `env:"AUTH_SECRET"`
	AuthTokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"720h"`

	SearchProvider   string        `env:"SEARCH_PROVIDER" envDefault:"stadia"`
	StadiaAPIKey     string        `env:"STADIA_API_KEY"`
	GoogleMapsAPIKey string        `env:"GOOGLE_MAPS_API_KEY"`
	MapboxAPIKey     string        `env:"MAPBOX_API_KEY"`
	SearchCacheTTL   time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"10m"`
	RedisURL         string        `env:"REDIS_URL"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"lookaround.events"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"lookaround-exports"`

	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE"`
}

// MinioEnabled reports whether destination exports can be uploaded.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

// CloudinaryEnabled reports whether preview images are mirrored.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Parse reads the environment into a Config without touching .env files.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func New() *Config {
	if loadErr := godotenv.Load(".env"); loadErr != nil {
		log.Printf("[Env]: unable to load .env file %v", loadErr)
	}

	cfg, parseErr := Parse()
	if parseErr != nil {
		log.Fatalf("[Env]: failed to parse environment variables: %v", parseErr)
	}

	return cfg
}
