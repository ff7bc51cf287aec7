package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/usecase"
	"github.com/urfave/cli/v3"
	"golang.org/x/crypto/bcrypt"
)

// MinSigningKeyLength is the shortest accepted HMAC key
const MinSigningKeyLength = 32

// Auth configures session tokens and password hashing
type Auth struct {
	signingKey string
	tokenTTL   time.Duration
	bcryptCost int64
}

func (x *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "auth-signing-key",
			Usage:       "HMAC key for session tokens (at least 32 bytes)",
			Category:    "Authentication",
			Required:    true,
			Destination: &x.signingKey,
			Sources:     cli.EnvVars("COMPLIFLOW_AUTH_SIGNING_KEY"),
		},
		&cli.DurationFlag{
			Name:        "auth-token-ttl",
			Usage:       "Lifetime of session tokens",
			Category:    "Authentication",
			Value:       usecase.DefaultTokenTTL,
			Destination: &x.tokenTTL,
			Sources:     cli.EnvVars("COMPLIFLOW_AUTH_TOKEN_TTL"),
		},
		&cli.Int64Flag{
			Name:        "auth-bcrypt-cost",
			Usage:       "bcrypt cost of password hashes",
			Category:    "Authentication",
			Value:       int64(bcrypt.DefaultCost),
			Destination: &x.bcryptCost,
			Sources:     cli.EnvVars("COMPLIFLOW_AUTH_BCRYPT_COST"),
		},
	}
}

func (x Auth) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("signing-key.len", len(x.signingKey)),
		slog.Duration("token-ttl", x.tokenTTL),
		slog.Int64("bcrypt-cost", x.bcryptCost),
	)
}

// Configure validates the flags and returns the use case options they map to
func (x *Auth) Configure() ([]usecase.Option, error) {
	if len(x.signingKey) < MinSigningKeyLength {
		return nil, goerr.Wrap(ErrInvalidConfig, "auth signing key is too short",
			goerr.V("length", len(x.signingKey)), goerr.V("min", MinSigningKeyLength))
	}
	if x.bcryptCost < int64(bcrypt.MinCost) || x.bcryptCost > int64(bcrypt.MaxCost) {
		return nil, goerr.Wrap(ErrInvalidConfig, "bcrypt cost out of range", goerr.V("cost", x.bcryptCost))
	}
	if x.tokenTTL <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "token ttl must be positive", goerr.V("ttl", x.tokenTTL))
	}

	return []usecase.Option{
		usecase.WithAuthKey([]byte(x.signingKey)),
		usecase.WithTokenTTL(x.tokenTTL),
		usecase.WithAuthOptions(usecase.WithBcryptCost(int(x.bcryptCost))),
	}, nil
}
