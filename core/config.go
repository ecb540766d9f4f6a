package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Session store backends.
const (
	SessionStoreMemory   = "memory"
	SessionStoreRedis    = "redis"
	SessionStorePostgres = "postgres"
)

type (
	serverConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	// apiConfig describes how to reach the tenant API: <Scheme>://<tenant>.<BaseDomain>/api
	apiConfig struct {
		BaseDomain    string
		Scheme        string
		DefaultTenant string
		Timeout       time.Duration
	}

	sessionConfig struct {
		CookieName       string
		CookieSecure     bool
		Store            string
		TTL              time.Duration
		ProfileStaleTime time.Duration
		MaxActive        int
	}

	loginConfig struct {
		Rate  float64 // attempts per second, per client IP
		Burst int
	}

	dbConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Config struct {
		AppName  string
		Env      string
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		Server   serverConfig
		API      apiConfig
		Session  sessionConfig
		Login    loginConfig
		Database dbConfig
		RedisURL string

		RollbarToken       string
		SendgridApiKey     string
		defaultFromEmail   string
		AccessRequestEmail string
	}
)

func (db dbConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func NewConfig() *Config {
	v := viper.New()

	// env selects the .env file; variables themselves are not prefixed
	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("APP_NAME", "VIMS")
	v.SetDefault("BUILD", "develop")
	v.SetDefault("DEBUG", env == "DEV" || env == "TEST")
	v.SetDefault("SERVER_HOST", "localhost")
	v.SetDefault("SERVER_ADDRESS", ":3000")
	v.SetDefault("SERVER_DEBUG_HOST", ":4000")
	v.SetDefault("SERVER_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second)
	v.SetDefault("API_BASE_DOMAIN", "localhost:8000")
	v.SetDefault("API_SCHEME", "http")
	v.SetDefault("DEFAULT_TENANT", "")
	v.SetDefault("API_TIMEOUT", 10*time.Second)
	v.SetDefault("SESSION_COOKIE", "vims_session")
	v.SetDefault("SESSION_COOKIE_SECURE", env == "PROD")
	v.SetDefault("SESSION_STORE", SessionStoreMemory)
	v.SetDefault("SESSION_TTL", 7*24*time.Hour)
	v.SetDefault("PROFILE_STALE_TIME", time.Minute)
	v.SetDefault("SESSION_MAX_ACTIVE", 10000)
	v.SetDefault("LOGIN_RATE", 0.2)
	v.SetDefault("LOGIN_BURST", 5)
	v.SetDefault("DB_ENGINE", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "vims")
	v.SetDefault("DB_DISABLE_TLS", true)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("DEFAULT_FROM_EMAIL", "VIMS <noreply@localhost>")

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:  v.GetString("APP_NAME"),
		Env:      env,
		Build:    v.GetString("BUILD"),
		Debug:    v.GetBool("DEBUG"),
		TestMode: env == "TEST",
		WorkDir:  workDir,
		Server: serverConfig{
			Host:            v.GetString("SERVER_HOST"),
			Address:         v.GetString("SERVER_ADDRESS"),
			DebugHost:       v.GetString("SERVER_DEBUG_HOST"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		API: apiConfig{
			BaseDomain:    v.GetString("API_BASE_DOMAIN"),
			Scheme:        v.GetString("API_SCHEME"),
			DefaultTenant: v.GetString("DEFAULT_TENANT"),
			Timeout:       v.GetDuration("API_TIMEOUT"),
		},
		Session: sessionConfig{
			CookieName:       v.GetString("SESSION_COOKIE"),
			CookieSecure:     v.GetBool("SESSION_COOKIE_SECURE"),
			Store:            strings.ToLower(v.GetString("SESSION_STORE")),
			TTL:              v.GetDuration("SESSION_TTL"),
			ProfileStaleTime: v.GetDuration("PROFILE_STALE_TIME"),
			MaxActive:        v.GetInt("SESSION_MAX_ACTIVE"),
		},
		Login: loginConfig{
			Rate:  v.GetFloat64("LOGIN_RATE"),
			Burst: v.GetInt("LOGIN_BURST"),
		},
		Database: dbConfig{
			Engine:        v.GetString("DB_ENGINE"),
			Host:          v.GetString("DB_HOST"),
			Port:          v.GetString("DB_PORT"),
			Name:          v.GetString("DB_NAME"),
			User:          v.GetString("DB_USER"),
			Password:      v.GetString("DB_PASSWORD"),
			AdminUser:     v.GetString("DB_ADMIN_USER"),
			AdminPassword: v.GetString("DB_ADMIN_PASSWORD"),
			DisableTLS:    v.GetBool("DB_DISABLE_TLS"),
		},
		RedisURL:           v.GetString("REDIS_URL"),
		RollbarToken:       v.GetString("ROLLBAR_TOKEN"),
		SendgridApiKey:     v.GetString("SENDGRID_API_KEY"),
		defaultFromEmail:   v.GetString("DEFAULT_FROM_EMAIL"),
		AccessRequestEmail: v.GetString("ACCESS_REQUEST_EMAIL"),
	}
}
