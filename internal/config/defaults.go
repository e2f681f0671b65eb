package config

const (
	defaultCacheDir                = "~/.local/share/modelshelf/cache"
	defaultLogDir                  = "~/.local/share/modelshelf/logs"
	defaultAPIBind                 = "127.0.0.1:7519"
	defaultCatalogBaseURL          = "https://civitai.com/api/v1"
	defaultCatalogRequestDelayMS   = 1000
	defaultCatalogTimeoutSeconds   = 30
	defaultCatalogRetryAttempts    = 3
	defaultNetworkFailureThreshold = 5
	defaultBlacklistAfterNotFound  = 3
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Catalog: Catalog{
			Enabled:        true,
			BaseURL:        defaultCatalogBaseURL,
			RequestDelayMS: defaultCatalogRequestDelayMS,
			TimeoutSeconds: defaultCatalogTimeoutSeconds,
			RetryAttempts:  defaultCatalogRetryAttempts,
		},
		Scanner: Scanner{
			NetworkFailureThreshold: defaultNetworkFailureThreshold,
			BlacklistAfterNotFound:  defaultBlacklistAfterNotFound,
		},
		Watcher: Watcher{
			Enabled: true,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
