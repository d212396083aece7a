package app

import (
	"flag"
	"net"
	"strconv"
	"time"
)

// Config is the root config for App: the HTTP listener, and the demo
// pipeline it builds and runs. A real deployment replaces
// buildDemoPipeline with one read from its own domain config; this binary
// exists to exercise the runtime end to end.
type Config struct {
	HTTPListenAddr string        `yaml:"http_listen_address,omitempty"`
	HTTPListenPort int           `yaml:"http_listen_port,omitempty"`
	LogLevel       string        `yaml:"log_level,omitempty"`
	ShutdownDelay  time.Duration `yaml:"shutdown_delay,omitempty"`

	PipelineName string `yaml:"pipeline_name,omitempty"`
}

// NewDefaultConfig returns a Config with every flag default applied, the
// same pattern loadConfig uses to seed defaults before overlaying a
// config file and the command line.
func NewDefaultConfig() *Config {
	c := &Config{}
	c.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("", flag.PanicOnError))
	return c
}

// RegisterFlagsAndApplyDefaults registers every flag under prefix and
// applies its default value.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.HTTPListenAddr = ""
	c.HTTPListenPort = 3765
	c.LogLevel = "info"
	c.PipelineName = "demo"

	f.StringVar(&c.HTTPListenAddr, prefix+"http-listen-address", c.HTTPListenAddr, "HTTP server listen address.")
	f.IntVar(&c.HTTPListenPort, prefix+"http-listen-port", c.HTTPListenPort, "HTTP server listen port.")
	f.StringVar(&c.LogLevel, prefix+"log.level", c.LogLevel, "Only log messages with the given severity or above (debug, info, warn, error).")
	f.DurationVar(&c.ShutdownDelay, prefix+"shutdown-delay", 0, "How long to wait between SIGTERM and shutdown; /ready keeps its current answer during this window.")
	f.StringVar(&c.PipelineName, prefix+"pipeline.name", c.PipelineName, "Name of the demo pipeline to build and run.")
}

// HTTPListenNetwork returns the listener address in host:port form.
func (c *Config) HTTPListenNetwork() string {
	return net.JoinHostPort(c.HTTPListenAddr, strconv.Itoa(c.HTTPListenPort))
}
