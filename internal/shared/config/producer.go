package config

import (
	"time"

	"github.com/spf13/viper"
)

// ProducerConfig contains all configuration for a producer process.
type ProducerConfig struct {
	Job     JobConfig       `mapstructure:"job"`
	Queue   QueueConnConfig `mapstructure:"queue"`
	API     APIConfig       `mapstructure:"api"`
	Logging LoggingConfig   `mapstructure:"logging"`
}

// JobConfig contains dispatch and collection settings for map jobs.
type JobConfig struct {
	Workers        int           `mapstructure:"workers"`
	MaxRetries     int           `mapstructure:"max_retries"`
	ResultTimeout  time.Duration `mapstructure:"result_timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// APIConfig contains the optional job status REST server configuration.
// An empty Addr disables the server.
type APIConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoadProducer loads the producer configuration from the given path.
// If configPath is empty, it looks for producer.yaml in the config/ directory.
// Environment variables with GOMAR_PRODUCER_ prefix override config file values.
func LoadProducer(configPath string) (*ProducerConfig, error) {
	v := viper.New()

	v.SetDefault("job.workers", 4)
	v.SetDefault("job.max_retries", 3)
	v.SetDefault("job.result_timeout", 5*time.Minute)
	v.SetDefault("job.publish_timeout", 10*time.Second)
	v.SetDefault("api.addr", "")
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.write_timeout", 15*time.Second)
	v.SetDefault("api.idle_timeout", 60*time.Second)
	setQueueConnDefaults(v)
	setLoggingDefaults(v)

	var cfg ProducerConfig
	if err := load(v, configPath, "producer", "GOMAR_PRODUCER", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
