package config

import "time"

const (
	apiBaseURLVar      = "API_BASE_URL"
	apiTimeoutVar      = "API_TIMEOUT"
	apiMaxRetriesVar   = "API_MAX_RETRIES"
	catalogCacheDirVar = "CATALOG_CACHE_DIR"
)

type API struct{}

var _ APIConfig = API{}

func (API) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "")
}

func (API) GetAPITimeout() time.Duration {
	return GetDurationEnv(apiTimeoutVar, 15*time.Second)
}

func (API) GetAPIMaxRetries() uint {
	n := GetIntEnv(apiMaxRetriesVar, 3)
	if n < 1 {
		return 1
	}
	return uint(n)
}

// GetCatalogCacheDir is empty for an in-memory catalog cache.
func (API) GetCatalogCacheDir() string {
	return GetEnv(catalogCacheDirVar, "")
}
