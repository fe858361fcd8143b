// Package config assembles the toolkit's configuration from the
// environment, with optional .env bootstrap for local development.
package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	OIDCConfig
	APIConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAppKey() string
	GetIdentityProvider() string
	GetDataFolder() string
	GetEnv() string
}

type OIDCConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCRedirectURL() string
}

type APIConfig interface {
	GetAPIHost() string
	GetAPITLS() bool
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	// Missing .env is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()
	return mainConfig{}
}
