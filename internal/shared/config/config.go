package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig contains logging-related configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// QueueConnConfig contains broker connection configuration shared by
// workers and producers.
type QueueConnConfig struct {
	Addr             string        `mapstructure:"addr"`
	KeepaliveTime    time.Duration `mapstructure:"keepalive_time"`
	KeepaliveTimeout time.Duration `mapstructure:"keepalive_timeout"`
	PollWait         time.Duration `mapstructure:"poll_wait"`
}

func setLoggingDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func setQueueConnDefaults(v *viper.Viper) {
	v.SetDefault("queue.addr", "localhost:9090")
	v.SetDefault("queue.keepalive_time", 30*time.Second)
	v.SetDefault("queue.keepalive_timeout", 5*time.Second)
	v.SetDefault("queue.poll_wait", 10*time.Second)
}

// load reads configPath, or <name>.yaml from ./config or the working
// directory when configPath is empty, then applies environment overrides
// with the given prefix and unmarshals into out.
func load(v *viper.Viper, configPath, name, envPrefix string, out any) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	return nil
}
