package config

import (
	"time"

	"github.com/spf13/viper"
)

// WorkerConfig contains all configuration for a worker process.
type WorkerConfig struct {
	Producer  string          `mapstructure:"producer"`
	Processes int             `mapstructure:"processes"`
	Queue     QueueConnConfig `mapstructure:"queue"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	// LeaseRenewInterval must stay well below the broker lease timeout.
	LeaseRenewInterval time.Duration `mapstructure:"lease_renew_interval"`
}

// LoadWorker loads the worker configuration from the given path.
// If configPath is empty, it looks for worker.yaml in the config/ directory.
// Environment variables with GOMAR_WORKER_ prefix override config file values.
func LoadWorker(configPath string) (*WorkerConfig, error) {
	v := viper.New()

	v.SetDefault("producer", "")
	v.SetDefault("processes", 1)
	v.SetDefault("lease_renew_interval", 10*time.Second)
	setQueueConnDefaults(v)
	setLoggingDefaults(v)

	var cfg WorkerConfig
	if err := load(v, configPath, "worker", "GOMAR_WORKER", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
