package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string // memory|sqlite|postgres
	DBDSN    string

	PassThreshold    int
	SessionReuse     string // new|reuse|reject
	StrictLateWrites bool
	SweepSchedule    string
	CodeLength       int

	// Empty GeneratorURL selects the built-in question pool.
	GeneratorURL          string
	GeneratorTimeout      time.Duration
	GeneratorTokenURL     string
	GeneratorClientID     string
	GeneratorClientSecret string

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	EnableIssuerAuth bool
	AdminUser        string
	AdminPassHash    string // bcrypt
	// Optional second login limited to the issuer role.
	IssuerUser     string
	IssuerPassHash string // bcrypt
	AuthHMACSecret string
	AuthTokenTTL   time.Duration

	LogLevel  string
	LogFormat string // json|text
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", "file:skillassess.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"),

		PassThreshold:    envInt("PASS_THRESHOLD", 50),
		SessionReuse:     envOr("SESSION_REUSE", "new"),
		StrictLateWrites: envBool("STRICT_LATE_WRITES", false),
		SweepSchedule:    envOr("SWEEP_SCHEDULE", "@every 15s"),
		CodeLength:       envInt("CODE_LENGTH", 8),

		GeneratorURL:          os.Getenv("GENERATOR_URL"),
		GeneratorTimeout:      envDuration("GENERATOR_TIMEOUT", 15*time.Second),
		GeneratorTokenURL:     os.Getenv("GENERATOR_TOKEN_URL"),
		GeneratorClientID:     os.Getenv("GENERATOR_CLIENT_ID"),
		GeneratorClientSecret: os.Getenv("GENERATOR_CLIENT_SECRET"),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://assess.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),

		EnableIssuerAuth: envBool("ENABLE_ISSUER_AUTH", false),
		AdminUser:        envOr("ADMIN_USER", "admin"),
		AdminPassHash:    os.Getenv("ADMIN_PASS_HASH"),
		IssuerUser:       os.Getenv("ISSUER_USER"),
		IssuerPassHash:   os.Getenv("ISSUER_PASS_HASH"),
		AuthHMACSecret:   os.Getenv("AUTH_HMAC_SECRET"),
		AuthTokenTTL:     envDuration("AUTH_TOKEN_TTL", 8*time.Hour),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),
	}
}

// CORSOrigins picks the origin list for the running mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

// Validate rejects combinations the daemon cannot start with.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		return fmt.Errorf("MODE: unknown mode %q", c.Mode)
	}
	switch c.DBDriver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER: unknown driver %q", c.DBDriver)
	}
	if c.DBDriver != "memory" && c.DBDSN == "" {
		return fmt.Errorf("DB_DSN: required for driver %s", c.DBDriver)
	}
	if c.PassThreshold < 0 || c.PassThreshold > 100 {
		return fmt.Errorf("PASS_THRESHOLD: %d is outside 0..100", c.PassThreshold)
	}
	switch strings.ToLower(c.SessionReuse) {
	case "", "new", "reuse", "reject":
	default:
		return fmt.Errorf("SESSION_REUSE: unknown policy %q", c.SessionReuse)
	}
	if c.GeneratorTokenURL != "" && c.GeneratorClientID == "" {
		return fmt.Errorf("GENERATOR_CLIENT_ID: required with GENERATOR_TOKEN_URL")
	}
	if c.EnableIssuerAuth {
		if c.AdminPassHash == "" {
			return fmt.Errorf("ADMIN_PASS_HASH: required with ENABLE_ISSUER_AUTH")
		}
		if len(c.AuthHMACSecret) < 16 {
			return fmt.Errorf("AUTH_HMAC_SECRET: at least 16 bytes required with ENABLE_ISSUER_AUTH")
		}
		if c.IssuerUser != "" {
			if c.IssuerPassHash == "" {
				return fmt.Errorf("ISSUER_PASS_HASH: required with ISSUER_USER")
			}
			if c.IssuerUser == c.AdminUser {
				return fmt.Errorf("ISSUER_USER: must differ from ADMIN_USER")
			}
		}
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return n
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
