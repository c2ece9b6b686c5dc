package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port        int           `env:"PORT" env-default:"8080"`
	JWTSecret   string        `env:"JWT_SECRET"`
	RingTimeout time.Duration `env:"RING_TIMEOUT" env-default:"45s"`
	SessionTTL  time.Duration `env:"SESSION_TTL" env-default:"24h"`
	Redis       RedisConfig   `env-prefix:"REDIS_"`
	Database    DatabaseConfig
	UserService ServiceConfig `env-prefix:"USER_SERVICE_"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" env-default:"0"`
}

type DatabaseConfig struct {
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Host     string `env:"DB_HOST"`
	Name     string `env:"DB_NAME"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`
}

type ServiceConfig struct {
	Port int    `env:"PORT"`
	Url  string `env:"URL"`
}

func MustLoad() *Config {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("failed to read environment variables: " + err.Error())
	}

	return &cfg
}
