package config

import (
	"time"

	"github.com/spf13/viper"
)

// BrokerConfig contains all configuration for the queue broker service.
type BrokerConfig struct {
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// GRPCConfig contains gRPC server configuration.
type GRPCConfig struct {
	Addr             string        `mapstructure:"addr"`
	KeepaliveMinTime time.Duration `mapstructure:"keepalive_min_time"`
	MaxPollWait      time.Duration `mapstructure:"max_poll_wait"`
}

// QueueConfig contains delivery lease configuration. MarkerTTL bounds how
// long cancel markers and purged topics are remembered.
type QueueConfig struct {
	LeaseTimeout time.Duration `mapstructure:"lease_timeout"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	MarkerTTL    time.Duration `mapstructure:"marker_ttl"`
}

// LoadBroker loads the broker configuration from the given path.
// If configPath is empty, it looks for broker.yaml in the config/ directory.
// Environment variables with GOMAR_BROKER_ prefix override config file values.
func LoadBroker(configPath string) (*BrokerConfig, error) {
	v := viper.New()

	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("grpc.keepalive_min_time", 10*time.Second)
	v.SetDefault("grpc.max_poll_wait", 20*time.Second)
	v.SetDefault("queue.lease_timeout", 30*time.Second)
	v.SetDefault("queue.reap_interval", time.Second)
	v.SetDefault("queue.marker_ttl", 5*time.Minute)
	setLoggingDefaults(v)

	var cfg BrokerConfig
	if err := load(v, configPath, "broker", "GOMAR_BROKER", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
