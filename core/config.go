package core

import (
	"log"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	devBaseURL  = "/api"
	prodBaseURL = "https://api.darasa.cd/api"
)

type (
	APIConfig struct {
		BaseURL           string
		ProxyOrigin       string // dev proxy that serves devBaseURL
		Timeout           time.Duration
		CreateConcurrency int
		BatchSize         int
		RequestDelay      time.Duration
		Token             string // service token for jobs running without a staff session
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	EmailConfig struct {
		DefaultFromEmail string
		SendgridAPIKey   string
		ReportRecipients []string
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		DraftTTL time.Duration
	}

	ReportsConfig struct {
		Schedule string // cron spec; empty disables the scheduled summary job
		Lookback time.Duration
	}

	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		WorkDir      string

		API     APIConfig
		Server  ServerConfig
		Email   EmailConfig
		Redis   RedisConfig
		Reports ReportsConfig
	}
)

// NewConfig reads the configuration from the environment (and config/.env.<env> if present).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k2b$u8+9w3=j_0s!x@7r5h1m(6d)zq4e#tgy^cp&vf-la*on")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("api.baseURL", "")
	v.SetDefault("api.proxyOrigin", "http://localhost:3000")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.createConcurrency", 6)
	v.SetDefault("api.batchSize", 6)
	v.SetDefault("api.requestDelay", time.Duration(0))
	v.SetDefault("api.token", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 12*time.Hour)

	v.SetDefault("email.defaultFromEmail", "Darasa <noreply@localhost>")
	v.SetDefault("email.sendgridAPIKey", "")
	v.SetDefault("email.reportRecipients", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.draftTTL", 24*time.Hour)

	v.SetDefault("reports.schedule", "")
	v.SetDefault("reports.lookback", 7*24*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		WorkDir:      wd,
		API: APIConfig{
			BaseURL:           v.GetString("api.baseURL"),
			ProxyOrigin:       v.GetString("api.proxyOrigin"),
			Timeout:           v.GetDuration("api.timeout"),
			CreateConcurrency: v.GetInt("api.createConcurrency"),
			BatchSize:         v.GetInt("api.batchSize"),
			RequestDelay:      v.GetDuration("api.requestDelay"),
			Token:             v.GetString("api.token"),
		},
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Address:            v.GetString("server.address"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Email: EmailConfig{
			DefaultFromEmail: v.GetString("email.defaultFromEmail"),
			SendgridAPIKey:   v.GetString("email.sendgridAPIKey"),
			ReportRecipients: splitList(v.GetString("email.reportRecipients")),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			DraftTTL: v.GetDuration("redis.draftTTL"),
		},
		Reports: ReportsConfig{
			Schedule: v.GetString("reports.schedule"),
			Lookback: v.GetDuration("reports.lookback"),
		},
	}
}

// APIBaseURL resolves the REST backend base URL.
// An explicit value always wins; DEV falls back to the proxied relative path, anything else to production.
func (c *Config) APIBaseURL() string {
	return ResolveBaseURL(c.Env, c.API.BaseURL, c.API.ProxyOrigin)
}

// ResolveBaseURL joins a relative base URL onto origin so the HTTP client always gets an absolute URL.
func ResolveBaseURL(env, baseURL, origin string) string {
	if baseURL == "" {
		if strings.EqualFold(env, "DEV") || strings.EqualFold(env, "TEST") {
			baseURL = devBaseURL
		} else {
			baseURL = prodBaseURL
		}
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.IsAbs() || origin == "" {
		return strings.TrimRight(baseURL, "/")
	}
	o, err := url.Parse(origin)
	if err != nil {
		return strings.TrimRight(baseURL, "/")
	}
	return strings.TrimRight(o.ResolveReference(u).String(), "/")
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.Email.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@" + c.Server.Host}
	}
	return *addr
}

func (c *Config) ReportRecipients() []mail.Address {
	addrs := make([]mail.Address, 0, len(c.Email.ReportRecipients))
	for _, r := range c.Email.ReportRecipients {
		if addr, err := mail.ParseAddress(r); err == nil {
			addrs = append(addrs, *addr)
		}
	}
	return addrs
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = CleanString(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
