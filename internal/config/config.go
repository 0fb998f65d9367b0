// Package config loads the pipeline's configuration via viper and
// snapshots it immutably at scan-start, per spec.md §4.8 ("Config: the
// core is given an immutable snapshot at scan-start; it does not read
// live config thereafter").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Snapshot is the immutable configuration handed to a ScanContext at
// scan-start. Fields mirror spec.md §6's recognized options.
type Snapshot struct {
	AIEnableVulnerabilityAnalysis bool          `mapstructure:"ai_enable_vulnerability_analysis"`
	AIProvider                    string        `mapstructure:"ai_provider"`
	AIAPIKey                      string        `mapstructure:"ai_api_key"`
	ServiceTimeout                time.Duration `mapstructure:"service_timeout_seconds"`
	RateLimitNVD                  time.Duration `mapstructure:"rate_limit_nvd_ms"`
	RateLimitEPSS                 time.Duration `mapstructure:"rate_limit_epss_ms"`
	TopKCVSS                      int           `mapstructure:"top_k_cvss"`
	TopKEPSS                      int           `mapstructure:"top_k_epss"`
}

// AIProvider values recognized by spec.md §6.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderLocal  = "local"
)

func setDefaults() {
	viper.SetDefault("ai_enable_vulnerability_analysis", false)
	viper.SetDefault("ai_provider", ProviderOpenAI)
	viper.SetDefault("ai_api_key", "")
	viper.SetDefault("service_timeout_seconds", 30)
	viper.SetDefault("rate_limit_nvd_ms", 6000)
	viper.SetDefault("rate_limit_epss_ms", 1000)
	viper.SetDefault("top_k_cvss", 10)
	viper.SetDefault("top_k_epss", 10)
}

// Load builds a Snapshot from environment variables under the VULNPIPE_
// prefix, an optional config file, and defaults, in that order of
// precedence, mirroring the teacher's cli.InitConfig. The config file is
// cfgFile, else the path in VULNPIPE_CONFIG, else vulnpipe.yaml searched
// in the default locations. The seconds and milliseconds fields are read
// as plain ints from viper and converted to time.Duration here.
func Load(cfgFile string) (*Snapshot, error) {
	setDefaults()

	if cfgFile == "" {
		cfgFile = os.Getenv("VULNPIPE_CONFIG")
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: unable to find home directory: %w", err)
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join(home, ".vulnpipe"))
		viper.AddConfigPath("/etc/vulnpipe")
		viper.SetConfigName("vulnpipe")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VULNPIPE")
	viper.AutomaticEnv()
	viper.BindEnv("ai_enable_vulnerability_analysis", "VULNPIPE_AI_ENABLE_VULNERABILITY_ANALYSIS")
	viper.BindEnv("ai_provider", "VULNPIPE_AI_PROVIDER")
	viper.BindEnv("ai_api_key", "VULNPIPE_AI_API_KEY")
	viper.BindEnv("service_timeout_seconds", "VULNPIPE_SERVICE_TIMEOUT_SECONDS")
	viper.BindEnv("rate_limit_nvd_ms", "VULNPIPE_RATE_LIMIT_NVD_MS")
	viper.BindEnv("rate_limit_epss_ms", "VULNPIPE_RATE_LIMIT_EPSS_MS")
	viper.BindEnv("top_k_cvss", "VULNPIPE_TOP_K_CVSS")
	viper.BindEnv("top_k_epss", "VULNPIPE_TOP_K_EPSS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	timeoutSeconds := viper.GetInt("service_timeout_seconds")
	nvdMs := viper.GetInt("rate_limit_nvd_ms")
	epssMs := viper.GetInt("rate_limit_epss_ms")

	snap := &Snapshot{
		AIEnableVulnerabilityAnalysis: viper.GetBool("ai_enable_vulnerability_analysis"),
		AIProvider:                    viper.GetString("ai_provider"),
		AIAPIKey:                      viper.GetString("ai_api_key"),
		ServiceTimeout:                time.Duration(timeoutSeconds) * time.Second,
		RateLimitNVD:                  time.Duration(nvdMs) * time.Millisecond,
		RateLimitEPSS:                 time.Duration(epssMs) * time.Millisecond,
		TopKCVSS:                      viper.GetInt("top_k_cvss"),
		TopKEPSS:                      viper.GetInt("top_k_epss"),
	}

	if err := Validate(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Validate rejects configuration values the pipeline cannot operate
// with, mirroring cli.ValidateConfig's style.
func Validate(snap *Snapshot) error {
	switch snap.AIProvider {
	case ProviderOpenAI, ProviderClaude, ProviderLocal:
	default:
		return fmt.Errorf("config: invalid ai_provider %q (must be openai, claude, or local)", snap.AIProvider)
	}
	if snap.AIEnableVulnerabilityAnalysis && snap.AIProvider == ProviderOpenAI && snap.AIAPIKey == "" {
		return fmt.Errorf("config: ai_api_key is required when ai_enable_vulnerability_analysis is true and ai_provider is openai")
	}
	if snap.ServiceTimeout <= 0 {
		return fmt.Errorf("config: service_timeout_seconds must be positive")
	}
	if snap.TopKCVSS <= 0 || snap.TopKEPSS <= 0 {
		return fmt.Errorf("config: top_k_cvss and top_k_epss must be positive")
	}
	return nil
}
