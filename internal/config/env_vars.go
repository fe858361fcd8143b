package config

import (
	"os"
	"strconv"
)

const (
	appNameVar    = "APP_NAME"
	appKeyVar     = "APP_KEY"
	providerVar   = "IDENTITY_PROVIDER"
	dataFolderVar = "DATA_FOLDER"
	envVar        = "ENV"

	oidcIssuerVar       = "OIDC_ISSUER"
	oidcClientIDVar     = "OIDC_CLIENT_ID"
	oidcClientSecretVar = "OIDC_CLIENT_SECRET"
	oidcRedirectURLVar  = "OIDC_REDIRECT_URL"

	apiHostVar = "API_HOST"
	apiTLSVar  = "API_TLS"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}
var _ OIDCConfig = EnvVars{}
var _ APIConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "appkit")
}

func (EnvVars) GetAppKey() string {
	return GetEnv(appKeyVar, "")
}

func (EnvVars) GetIdentityProvider() string {
	return GetEnv(providerVar, "oidc")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(dataFolderVar, ".appkit")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "development")
}

func (EnvVars) GetOIDCIssuer() string {
	return GetEnv(oidcIssuerVar, "")
}

func (EnvVars) GetOIDCClientID() string {
	return GetEnv(oidcClientIDVar, "")
}

func (EnvVars) GetOIDCClientSecret() string {
	return GetEnv(oidcClientSecretVar, "")
}

func (EnvVars) GetOIDCRedirectURL() string {
	return GetEnv(oidcRedirectURLVar, "")
}

func (EnvVars) GetAPIHost() string {
	return GetEnv(apiHostVar, "")
}

func (EnvVars) GetAPITLS() bool {
	tls, err := strconv.ParseBool(GetEnv(apiTLSVar, "true"))
	if err != nil {
		return true
	}
	return tls
}

func GetEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}
