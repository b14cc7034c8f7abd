package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr                 string
	DBPath               string
	JWTSecret            string
	TokenTTL             time.Duration
	BcryptCost           int
	DBMaxConns           int
	ValidateReplyTargets bool

	Version   string
	Commit    string
	BuildTime string
}

func Load() Config {
	addr := envString("ANTLER_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}
	return Config{
		Addr:                 addr,
		DBPath:               envString("ANTLER_DB", "antler.db"),
		JWTSecret:            envString("ANTLER_JWT_SECRET", "dev-jwt-secret"),
		TokenTTL:             envDuration("ANTLER_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:           envInt("ANTLER_BCRYPT_COST", 12),
		DBMaxConns:           envInt("ANTLER_DB_MAX_CONNS", 10),
		ValidateReplyTargets: envBool("ANTLER_VALIDATE_REPLY_TARGETS", false),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
