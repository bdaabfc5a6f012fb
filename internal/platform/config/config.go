package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config del servicio. Todo viene de env (opcionalmente vía .env).
type Config struct {
	Port int `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`

	// Vacío => store in-memory (modo dev).
	DatabaseDSN string `env:"DB_DSN"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn warning error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
	AppName   string `env:"APP_NAME" envDefault:"animal-shelter" validate:"required"`

	// Vacío => modo dev con headers X-Debug-User-ID / X-Debug-User-Roles.
	JWTSecret string `env:"JWT_SECRET" validate:"omitempty,min=16"`
	JWTIssuer string `env:"JWT_ISSUER"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" validate:"omitempty,url"`

	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s" validate:"gt=0"`
}

var validate = validator.New()

// ParseEnv carga configuración desde variables de entorno.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load lee .env si existe (no es error que falte), parsea env y valida.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) DevAuth() bool {
	return strings.TrimSpace(c.JWTSecret) == ""
}
