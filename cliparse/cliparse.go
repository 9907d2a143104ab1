package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	UserTokenSalt string
	MutationRate  float64
	MutationBurst int
	EnvFile       string
}

// Defaults
const (
	DefaultPort          = 3318
	DefaultSQLitePath    = "opinionsync.db"
	DefaultMutationRate  = 5.0
	DefaultMutationBurst = 10
)

// ParseFlags validates flags and fills the rest from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("opinionsync", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.UserTokenSalt, "token-salt", "", "User token salt (prefer env)")

	// Per-user mutation limits
	fs.Float64Var(&cfg.MutationRate, "rate", 0, "Mutations per second per user")
	fs.IntVar(&cfg.MutationBurst, "burst", 0, "Mutation burst per user")

	fs.StringVar(&cfg.EnvFile, "env", ".env", "Optional dotenv file")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Values already in the environment win over the dotenv file
	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil && !isNotExist(err) {
			return Config{}, fmt.Errorf("failed to load %s: %w", cfg.EnvFile, err)
		}
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = DefaultPort
		}
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		if cfg.DatabaseType != "sqlite" {
			return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
		}
		cfg.DatabaseURL = DefaultSQLitePath
	}

	// Secrets - MUST be provided
	if cfg.UserTokenSalt == "" {
		cfg.UserTokenSalt = os.Getenv("USER_TOKEN_SALT")
	}
	if cfg.UserTokenSalt == "" {
		return Config{}, errors.New("USER_TOKEN_SALT required")
	}

	if cfg.MutationRate == 0 {
		if s := os.Getenv("MUTATION_RATE"); s != "" {
			rate, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Config{}, errors.New("invalid MUTATION_RATE env variable")
			}
			cfg.MutationRate = rate
		} else {
			cfg.MutationRate = DefaultMutationRate
		}
	}
	if cfg.MutationRate < 0 {
		return Config{}, errors.New("mutation rate must be positive")
	}

	if cfg.MutationBurst == 0 {
		if s := os.Getenv("MUTATION_BURST"); s != "" {
			burst, err := strconv.Atoi(s)
			if err != nil {
				return Config{}, errors.New("invalid MUTATION_BURST env variable")
			}
			cfg.MutationBurst = burst
		} else {
			cfg.MutationBurst = DefaultMutationBurst
		}
	}

	return cfg, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
