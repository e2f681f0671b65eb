package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if !c.Catalog.Enabled {
		return nil
	}
	if c.Catalog.BaseURL == "" {
		return errors.New("catalog.base_url must be set when catalog.enabled is true")
	}
	if c.Catalog.RequestDelayMS < 100 {
		return errors.New("catalog.request_delay_ms must be at least 100 to respect provider rate limits")
	}
	return nil
}

func (c *Config) validateScanner() error {
	if c.Scanner.NetworkFailureThreshold < 1 {
		return errors.New("scanner.network_failure_threshold must be at least 1")
	}
	if c.Scanner.BlacklistAfterNotFound < 1 {
		return errors.New("scanner.blacklist_after_not_found must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
