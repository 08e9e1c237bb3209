package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/calauth/internal/flagx"
)

var valueFlags = []string{
	"-a", "-l", "-d", "-s", "-t", "-r", "-x", "-u",
	"-m", "-mp", "-mu", "-mw", "-mf", "-rd", "-v",
}

// FlagNames lists every flag the configuration layer consumes, including
// the config and env file selectors.
func FlagNames() []string {
	return append([]string{"-c", "-config", "--config", "-ef", "-envfile", "--envfile"}, valueFlags...)
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-l string   health endpoint bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-x int      password reset token validity, minutes
//	-u string   password reset link base URL
//	-m string   SMTP host
//	-mp int     SMTP port
//	-mu string  SMTP user
//	-mw string  SMTP password
//	-mf string  SMTP sender address
//	-rd string  Redis address for the revoked-session denylist
//	-v string   log level
//
// Only the flags above are handed to the FlagSet (see flagx.FilterArgs), so
// -c/-config and -envfile do not collide. Durations are whole minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], valueFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "l", config.EndpointAddrHTTP, "address and port to run health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")
	resetTokenValidityDuration := fs.Int("x", int(config.ResetTokenValidityDuration.Minutes()), "reset_token_validity_duration (in minutes)")

	fs.StringVar(&config.ResetLinkBaseURL, "u", config.ResetLinkBaseURL, "password reset link base URL")
	fs.StringVar(&config.SMTPHost, "m", config.SMTPHost, "SMTP host")
	fs.IntVar(&config.SMTPPort, "mp", config.SMTPPort, "SMTP port")
	fs.StringVar(&config.SMTPUser, "mu", config.SMTPUser, "SMTP user")
	fs.StringVar(&config.SMTPPassword, "mw", config.SMTPPassword, "SMTP password")
	fs.StringVar(&config.SMTPFrom, "mf", config.SMTPFrom, "SMTP sender address")
	fs.StringVar(&config.RedisAddr, "rd", config.RedisAddr, "redis address")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.ResetTokenValidityDuration = time.Duration(*resetTokenValidityDuration) * time.Minute
}
