package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/drone/envsubst"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"gopkg.in/yaml.v3"

	"github.com/fluxgraph/fluxgraph/cmd/fluxgraphd/app"
)

var (
	Version  string
	Branch   string
	Revision string
)

func init() {
	version.Version = Version
	version.Branch = Branch
	version.Revision = Revision
	prometheus.MustRegister(version.NewCollector("fluxgraphd"))
}

func main() {
	printVersion := flag.Bool("version", false, "Print this build's version information and exit.")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}
	if *printVersion {
		fmt.Println(version.Print("fluxgraphd"))
		os.Exit(0)
	}

	logger := newLogger(cfg.LogLevel)
	level.Info(logger).Log("msg", "starting fluxgraphd", "version", version.Info())

	a, err := app.New(*cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "error initialising fluxgraphd", "err", err)
		os.Exit(1)
	}

	if err := a.Run(); err != nil {
		level.Error(logger).Log("msg", "error running fluxgraphd", "err", err)
		os.Exit(1)
	}
}

func newLogger(levelName string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return level.NewFilter(logger, levelOption(levelName))
}

func levelOption(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// loadConfig applies every flag default, then overlays a YAML config
// file (with -config.expand-env running it through envsubst first), then
// the command line, matching the teacher's three-layer precedence.
func loadConfig() (*app.Config, error) {
	const (
		configFileOption      = "config.file"
		configExpandEnvOption = "config.expand-env"
	)

	var (
		configFile      string
		configExpandEnv bool
	)

	args := os.Args[1:]
	cfg := &app.Config{}

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configFile, configFileOption, "", "")
	fs.BoolVar(&configExpandEnv, configExpandEnvOption, false, "")

	for len(args) > 0 {
		_ = fs.Parse(args)
		args = args[1:]
	}

	cfg.RegisterFlagsAndApplyDefaults("", flag.CommandLine)

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read configFile %s: %w", configFile, err)
		}
		if configExpandEnv {
			s, err := envsubst.EvalEnv(string(buf))
			if err != nil {
				return nil, fmt.Errorf("failed to expand env vars from configFile %s: %w", configFile, err)
			}
			buf = []byte(s)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configFile %s: %w", configFile, err)
		}
	}

	flag.String(configFileOption, "", "Configuration file to load.")
	flag.Bool(configExpandEnvOption, false, "Whether to expand environment variables in the config file.")
	flag.Parse()

	return cfg, nil
}
