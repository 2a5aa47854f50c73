package config

import (
	"net"
	"strconv"
	"time"
)

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Config holds the application configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	RootDir string `mapstructure:"root_dir"`
	HomeDir string `mapstructure:"home_dir"`

	QueueTime     int    `mapstructure:"queue_time"`
	Threads       int    `mapstructure:"threads"`
	Policy        string `mapstructure:"policy"`
	QueueCapacity int    `mapstructure:"queue_capacity"`
	QueueOverflow string `mapstructure:"queue_overflow"`

	ConnDeadline time.Duration `mapstructure:"conn_deadline"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`

	Debug   bool   `mapstructure:"debug"`
	LogFile string `mapstructure:"log_file"`

	Tracing TracingConfig `mapstructure:"tracing"`
}

// ListenAddress returns host:port for net.Listen.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Quiescence returns the queuing time as a duration.
func (c *Config) Quiescence() time.Duration {
	return time.Duration(c.QueueTime) * time.Second
}
