// Package config is responsible for initializing the application's
// configuration. It uses the Viper library to read settings from a config
// file and environment variables, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. Designed to be called once at startup.
func InitConfig() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/harvester/")
	viper.AddConfigPath("$HOME/.harvester")

	const defaultUA = "CalderLab-Harvester/1.0 (+https://github.com/calderlab/harvester)"
	viper.SetDefault("anthology.base_url", "https://aclanthology.org")
	viper.SetDefault("fetcher.user_agent", defaultUA)
	viper.SetDefault("fetcher.timeout", "15s")
	viper.SetDefault("fetcher.min_delay", "300ms")
	viper.SetDefault("fetcher.max_attempts", 3)
	viper.SetDefault("fetcher.base_backoff", "250ms")
	viper.SetDefault("fetcher.max_backoff", "5s")
	viper.SetDefault("output.csv_path", "results.csv")
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen_addr", ":9090")
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.table", "harvest_results")
	viper.SetDefault("log.development", false)

	viper.SetEnvPrefix("HARVESTER") // e.g. HARVESTER_FETCHER_TIMEOUT=30s
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; defaults and env vars carry the run.
	_ = viper.ReadInConfig()
}
