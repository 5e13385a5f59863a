package config

import (
	"errors"
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
	Address  string `yaml:"address" env:"APP_ADDRESS" env-default:":8080"`

	DBAddress string `yaml:"db_address" env:"DB_ADDRESS" env-required:"true"`
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`

	// Empty URL disables the outbound enrichment notifier.
	EnrichmentWebhookURL string `yaml:"enrichment_webhook_url" env:"ENRICHMENT_WEBHOOK_URL"`
}

// MustLoad reads configPath if present, otherwise falls back to env vars only.
func MustLoad(configPath string) Config {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read env: %s", err)
		}
		return cfg
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			if err := cleanenv.ReadEnv(&cfg); err != nil {
				log.Fatalf("cannot read env: %s", err)
			}
			return cfg
		}
		log.Fatalf("cannot read config %q: %s", configPath, err)
	}

	return cfg
}
