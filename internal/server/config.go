package server

import (
	"os"
	"time"
)

type Config struct {
	ListenAddr string

	// Mongo is optional; without a URI the stores fall back to local files.
	MongoURI        string
	MongoDB         string
	SettingsColl    string
	CredentialsColl string
	DataDir         string

	// Master secret env sources, in precedence order. Empty means the
	// crypto package defaults.
	SecretSources []string

	JWTIssuer string
	TokenTTL  time.Duration
}

func ConfigFromEnv() Config {
	cfg := Config{
		ListenAddr: os.Getenv("SECRETSD_ADDR"),
		MongoURI:   os.Getenv("SECRETSD_MONGO_URI"),
		MongoDB:    os.Getenv("SECRETSD_MONGO_DB"),
		DataDir:    os.Getenv("SECRETSD_DATA_DIR"),
	}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8090"
	}
	if c.MongoDB == "" {
		c.MongoDB = "agentsecrets"
	}
	if c.SettingsColl == "" {
		c.SettingsColl = "settings"
	}
	if c.CredentialsColl == "" {
		c.CredentialsColl = "credentials"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "agent-secrets"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 15 * time.Minute
	}
}
