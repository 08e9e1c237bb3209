package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/dmitrijs2005/calauth/internal/flagx"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// EnvConfig lists the environment variables the server understands.
// Unset variables leave the corresponding Config value untouched.
type EnvConfig struct {
	EndpointAddrGRPC             string        `env:"CALAUTH_GRPC_ADDR"`
	EndpointAddrHTTP             string        `env:"CALAUTH_HTTP_ADDR"`
	DatabaseDSN                  string        `env:"DATABASE_URL"`
	SecretKey                    string        `env:"JWT_SECRET_KEY"`
	AccessTokenValidityDuration  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRES"`
	RefreshTokenValidityDuration time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRES"`
	ResetTokenValidityDuration   time.Duration `env:"RESET_TOKEN_EXPIRES"`
	ResetLinkBaseURL             string        `env:"RESET_LINK_BASE_URL"`
	SMTPHost                     string        `env:"SMTP_HOST"`
	SMTPPort                     int           `env:"SMTP_PORT"`
	SMTPUser                     string        `env:"SMTP_USER"`
	SMTPPassword                 string        `env:"SMTP_PASSWORD"`
	SMTPFrom                     string        `env:"SMTP_FROM"`
	RedisAddr                    string        `env:"REDIS_ADDR"`
	LogLevel                     string        `env:"LOG_LEVEL"`
}

// defaultEnvFile is loaded when present and no -envfile flag is given.
const defaultEnvFile = ".env"

// parseEnv seeds the process environment from a dotenv file (the one named
// by -envfile/-ef, else ./.env when it exists) and overlays the variables
// described by EnvConfig onto config. Already-set variables win over the
// file. A named file that cannot be loaded, or an unparsable value, panics.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	c := &EnvConfig{}
	if err := cleanenv.ReadEnv(c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.ResetTokenValidityDuration, c.ResetTokenValidityDuration)
	setString(&config.ResetLinkBaseURL, c.ResetLinkBaseURL)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogLevel, c.LogLevel)
}
