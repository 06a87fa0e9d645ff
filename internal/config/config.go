package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Config interface {
	EnvConfig
	CognitoConfig
	APIConfig
	StorageConfig
	CartConfig
	ProfileConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetDataFolder() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetAPIMaxRetries() uint
	GetCatalogCacheDir() string
}

type mainConfig struct {
	EnvVars
	Cognito
	API
	Storage
	Cart
	Profile
}

func New() Config {
	return mainConfig{}
}

// Validate reports the required settings that are missing or still hold a
// template placeholder such as "<client-id>".
func Validate(c Config) error {
	required := map[string]string{
		cognitoClientIDVar: c.GetClientID(),
		apiBaseURLVar:      c.GetAPIBaseURL(),
	}
	if c.GetAuthProtocol() == ProtocolHosted {
		required[cognitoDomainVar] = c.GetDomain()
		required[cognitoRedirectVar] = c.GetRedirectURI()
	} else {
		required[cognitoRegionVar] = c.GetRegion()
	}

	var missing []string
	for name, value := range required {
		if value == "" || strings.Contains(value, "<") {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("missing or invalid environment variables: %s", strings.Join(missing, ", "))
}
