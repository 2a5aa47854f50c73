package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"myhttpd/observability"
	"myhttpd/queue"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"debug":          "debug",
	"log-file":       "log_file",
	"port":           "port",
	"root":           "root_dir",
	"queue-time":     "queue_time",
	"threads":        "threads",
	"policy":         "policy",
	"host":           "host",
	"home-dir":       "home_dir",
	"queue-capacity": "queue_capacity",
	"queue-overflow": "queue_overflow",
	"conn-deadline":  "conn_deadline",
	"read-timeout":   "read_timeout",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "")
	v.SetDefault("port", 8080)
	v.SetDefault("root_dir", ".")
	v.SetDefault("home_dir", "")
	v.SetDefault("queue_time", 60)
	v.SetDefault("threads", 4)
	v.SetDefault("policy", "FCFS")
	v.SetDefault("queue_capacity", 0)
	v.SetDefault("queue_overflow", "reject")
	v.SetDefault("conn_deadline", 30*time.Second)
	v.SetDefault("read_timeout", 5*time.Second)
	v.SetDefault("debug", false)
	v.SetDefault("log_file", "")
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// LoadConfig builds the configuration from defaults, the optional config
// file, MYHTTPD_* environment variables and flags that were set explicitly on
// the command line, in increasing order of precedence.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("myhttpd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	var configuration Config
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Debugging runs a single worker so requests are served one at a time.
	if configuration.Debug {
		configuration.Threads = 1
	}

	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.RootDir == "" {
		return errors.New("root_dir is required")
	}
	if c.QueueTime < 0 {
		return fmt.Errorf("queue_time must not be negative: %d", c.QueueTime)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("threads must be positive: %d", c.Threads)
	}
	if _, err := queue.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must not be negative: %d", c.QueueCapacity)
	}
	if _, err := queue.ParseOverflow(c.QueueOverflow); err != nil {
		return err
	}
	if c.ConnDeadline < 0 || c.ReadTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]: %v", c.Tracing.SampleRatio)
	}
	return nil
}

// QueueOptions converts the queue settings. Call after Validate.
func (c *Config) QueueOptions() queue.Options {
	policy, _ := queue.ParsePolicy(c.Policy)
	overflow, _ := queue.ParseOverflow(c.QueueOverflow)
	return queue.Options{
		Policy:   policy,
		Capacity: c.QueueCapacity,
		Overflow: overflow,
	}
}

// TracingOptions converts the tracing settings.
func (c *Config) TracingOptions(service string) observability.TracingOptions {
	return observability.TracingOptions{
		Service:     service,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		Insecure:    c.Tracing.Insecure,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
