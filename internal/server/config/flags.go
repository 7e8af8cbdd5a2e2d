package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string    gRPC bind address (e.g., ":50051")
//	-d string    PostgreSQL DSN
//	-s string    access token HMAC secret
//	-rs string   refresh token HMAC secret
//	-ps string   password reset token HMAC secret
//	-t int       access token validity, minutes
//	-r int       refresh token validity, minutes
//	-pt int      reset token validity, minutes
//	-single bool single-session policy (use -single=false for multi-session)
//	-w int       store request timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-d", "-s", "-rs", "-ps", "-t", "-r", "-pt", "-single", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "rs", config.RefreshTokenSecret, "refresh token secret")
	fs.StringVar(&config.ResetTokenSecret, "ps", config.ResetTokenSecret, "reset token secret")

	accessValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	resetValidity := fs.Int("pt", int(config.ResetTokenValidityDuration.Minutes()), "reset token validity (in minutes)")

	fs.BoolVar(&config.SingleSession, "single", config.SingleSession, "revoke prior session on sign-in")

	requestTimeout := fs.Int("w", int(config.RequestTimeout.Seconds()), "store request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessValidity) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshValidity) * time.Minute
	config.ResetTokenValidityDuration = time.Duration(*resetValidity) * time.Minute
	config.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
