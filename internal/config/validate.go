package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateThresholds(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateThresholds() error {
	thresholds := []struct {
		key   string
		value float64
	}{
		{"dedup.image_threshold", c.Dedup.ImageThreshold},
		{"dedup.title_threshold", c.Dedup.TitleThreshold},
		{"dedup.metadata_threshold", c.Dedup.MetadataThreshold},
		{"dedup.combined_threshold", c.Dedup.CombinedThreshold},
	}
	for _, t := range thresholds {
		if t.value < 0 || t.value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", t.key)
		}
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Dedup.YearWindow < 0 {
		return errors.New("dedup.year_window must be >= 0")
	}
	if c.Dedup.BatchSize <= 0 {
		return errors.New("dedup.batch_size must be positive")
	}
	if c.Dedup.Workers <= 0 {
		return errors.New("dedup.workers must be positive")
	}
	if c.Dedup.ScanRetentionMinutes < 0 {
		return errors.New("dedup.scan_retention_minutes must be >= 0")
	}
	switch c.Dedup.MissingFields {
	case MissingFieldsRenormalize, MissingFieldsZero:
	default:
		return fmt.Errorf("dedup.missing_fields must be %q or %q", MissingFieldsRenormalize, MissingFieldsZero)
	}
	for _, method := range c.Dedup.Methods {
		if !slices.Contains(DetectionMethods, method) {
			return fmt.Errorf("dedup.methods: unknown method %q (expected one of %s)", method, strings.Join(DetectionMethods, ", "))
		}
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.NumberWidth < 1 || c.Catalog.NumberWidth > 12 {
		return errors.New("catalog.number_width must be between 1 and 12")
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
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
