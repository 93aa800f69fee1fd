package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// fileConfig mirrors Config for YAML files. Durations are written as strings
// such as "15m" and parsed with time.ParseDuration.
type fileConfig struct {
	AppName     string `yaml:"app_name"`
	AppEnv      string `yaml:"app_env"`
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	OriginURL   string `yaml:"origin_url"`

	Tokens struct {
		AccessTTL   string `yaml:"access_ttl"`
		RefreshTTL  string `yaml:"refresh_ttl"`
		ResetTTL    string `yaml:"reset_ttl"`
		RegisterTTL string `yaml:"register_ttl"`
	} `yaml:"tokens"`

	Market struct {
		BaseURL          string `yaml:"base_url"`
		CacheTTL         string `yaml:"cache_ttl"`
		FetchConcurrency int    `yaml:"fetch_concurrency"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"market"`

	SMTP struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		From string `yaml:"from"`
	} `yaml:"smtp"`

	Storage struct {
		Backend    string `yaml:"backend"`
		UploadDir  string `yaml:"upload_dir"`
		S3Bucket   string `yaml:"s3_bucket"`
		S3Region   string `yaml:"s3_region"`
		S3Endpoint string `yaml:"s3_endpoint"`
	} `yaml:"storage"`
}

// applyFile overlays non-empty values from a YAML file onto cfg. Secrets are
// deliberately absent from the file format and only come from the environment.
func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.AppName, fc.AppName)
	setString(&cfg.AppEnv, fc.AppEnv)
	setString(&cfg.Port, fc.Port)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.RedisURL, fc.RedisURL)
	setString(&cfg.OriginURL, fc.OriginURL)
	setString(&cfg.Market.BaseURL, fc.Market.BaseURL)
	setString(&cfg.SMTP.Host, fc.SMTP.Host)
	setString(&cfg.SMTP.From, fc.SMTP.From)
	setString(&cfg.Storage.Backend, fc.Storage.Backend)
	setString(&cfg.Storage.UploadDir, fc.Storage.UploadDir)
	setString(&cfg.Storage.S3Bucket, fc.Storage.S3Bucket)
	setString(&cfg.Storage.S3Region, fc.Storage.S3Region)
	setString(&cfg.Storage.S3Endpoint, fc.Storage.S3Endpoint)
	if fc.Market.FetchConcurrency > 0 {
		cfg.Market.FetchConcurrency = fc.Market.FetchConcurrency
	}
	if fc.SMTP.Port > 0 {
		cfg.SMTP.Port = fc.SMTP.Port
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"tokens.access_ttl", fc.Tokens.AccessTTL, &cfg.AccessTokenTTL},
		{"tokens.refresh_ttl", fc.Tokens.RefreshTTL, &cfg.RefreshTokenTTL},
		{"tokens.reset_ttl", fc.Tokens.ResetTTL, &cfg.ResetTokenTTL},
		{"tokens.register_ttl", fc.Tokens.RegisterTTL, &cfg.RegisterTokenTTL},
		{"market.cache_ttl", fc.Market.CacheTTL, &cfg.Market.CacheTTL},
		{"market.timeout", fc.Market.Timeout, &cfg.Market.Timeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s in config file: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
