package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           string `envconfig:"PORT" default:"8080"`
	MySQLDSN       string `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/marketplace?parseTime=true&multiStatements=true"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD" default:""`
	KafkaBrokers   string `envconfig:"KAFKA_BROKERS" default:""`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"migrations"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
