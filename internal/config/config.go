package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	BlobBasePath string // lesson assets

	EnableLocalAuth bool
	AuthHMACSecret  string
	TokenTTL        time.Duration

	AdminEmail    string
	AdminPassHash string // bcrypt; empty disables bootstrap

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	LogLevel  string
	LogPretty bool

	// AttemptTickInterval is the countdown period of live attempts.
	AttemptTickInterval time.Duration
}

// FromEnv reads configuration from the environment and an optional .env file
// in the working directory. Environment variables win over the file.
func FromEnv() Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("MODE", string(ModeOffline))
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("BLOB_BASE_PATH", "./data")
	v.SetDefault("ENABLE_LOCAL_AUTH", true)
	v.SetDefault("AUTH_HMAC_SECRET", "supersecret-dev-key")
	v.SetDefault("TOKEN_TTL", "8h")
	v.SetDefault("ADMIN_EMAIL", "admin@localhost")
	v.SetDefault("CORS_ORIGINS_ONLINE", "https://clab.mindengage.ai")
	v.SetDefault("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("ATTEMPT_TICK_INTERVAL", "1s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("reading .env")
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	mode := Mode(strings.ToLower(v.GetString("MODE")))
	if mode != ModeOnline {
		mode = ModeOffline
	}
	return Config{
		Mode:                mode,
		HTTPAddr:            v.GetString("HTTP_ADDR"),
		PublicURL:           strings.TrimSuffix(v.GetString("PUBLIC_URL"), "/"),
		DBDriver:            v.GetString("DB_DRIVER"),
		DBDSN:               v.GetString("DB_DSN"),
		BlobBasePath:        v.GetString("BLOB_BASE_PATH"),
		EnableLocalAuth:     v.GetBool("ENABLE_LOCAL_AUTH"),
		AuthHMACSecret:      v.GetString("AUTH_HMAC_SECRET"),
		TokenTTL:            durationOr(v, "TOKEN_TTL", 8*time.Hour),
		AdminEmail:          v.GetString("ADMIN_EMAIL"),
		AdminPassHash:       v.GetString("ADMIN_PASS_HASH"),
		CORSOriginsOnline:   csv(v.GetString("CORS_ORIGINS_ONLINE")),
		CORSOriginsOffline:  csv(v.GetString("CORS_ORIGINS_OFFLINE")),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogPretty:           v.GetBool("LOG_PRETTY"),
		AttemptTickInterval: durationOr(v, "ATTEMPT_TICK_INTERVAL", time.Second),
	}
}

// CORSOrigins returns the allowed origins for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func durationOr(v *viper.Viper, k string, def time.Duration) time.Duration {
	d := v.GetDuration(k)
	if d <= 0 {
		return def
	}
	return d
}

func csv(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
