package main

import (
	"net/http"
	"time"

	"modelshelf/internal/catalog"
	"modelshelf/internal/config"
)

// newFetcher builds the catalog client from configuration, or nil when the
// catalog integration is disabled.
func newFetcher(cfg *config.Config) (catalog.Fetcher, error) {
	if cfg == nil || !cfg.Catalog.Enabled {
		return nil, nil
	}
	client, err := catalog.New(cfg.Catalog.BaseURL, cfg.Catalog.APIKey,
		catalog.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Catalog.TimeoutSeconds) * time.Second}),
		catalog.WithMinInterval(time.Duration(cfg.Catalog.RequestDelayMS)*time.Millisecond),
		catalog.WithRetryAttempts(cfg.Catalog.RetryAttempts),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}
