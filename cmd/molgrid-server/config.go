package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/daniacca/molgrid/internal/reaction"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr          string
	ChartID       string
	ChartFile     string
	SnapshotDir   string
	DBPath        string
	LogLevel      string
	NotifyWorkers int
}

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string) error
}

var resolvers = []configResolver{
	{
		flagName:    "addr",
		envVarName:  "MOLGRID_ADDR",
		defaultVal:  ":8080",
		description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
		setter:      func(c *ServerConfig, v string) error { c.Addr = v; return nil },
	},
	{
		flagName:    "chart-id",
		envVarName:  "MOLGRID_CHART_ID",
		defaultVal:  "default",
		description: "chart ID used for the chart file loaded at startup",
		setter:      func(c *ServerConfig, v string) error { c.ChartID = v; return nil },
	},
	{
		flagName:    "chart-file",
		envVarName:  "MOLGRID_CHART_FILE",
		defaultVal:  "",
		description: "optional path to a JSON chart config file to load at startup",
		setter:      func(c *ServerConfig, v string) error { c.ChartFile = v; return nil },
	},
	{
		flagName:    "snapshot-dir",
		envVarName:  "MOLGRID_SNAPSHOT_DIR",
		defaultVal:  "./data",
		description: "directory where chart snapshots are written; empty disables file snapshots",
		setter:      func(c *ServerConfig, v string) error { c.SnapshotDir = v; return nil },
	},
	{
		flagName:    "db-path",
		envVarName:  "MOLGRID_DB_PATH",
		defaultVal:  "",
		description: "SQLite file keeping snapshot history; empty disables history",
		setter:      func(c *ServerConfig, v string) error { c.DBPath = v; return nil },
	},
	{
		flagName:    "log-level",
		envVarName:  "MOLGRID_LOG_LEVEL",
		defaultVal:  "info",
		description: "log level: debug, info, warn, error",
		setter:      func(c *ServerConfig, v string) error { c.LogLevel = v; return nil },
	},
	{
		flagName:    "notify-workers",
		envVarName:  "MOLGRID_NOTIFY_WORKERS",
		defaultVal:  "2",
		description: "number of goroutines delivering notifications",
		setter: func(c *ServerConfig, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid value for notify-workers: %q (must be a positive integer)", v)
			}
			c.NotifyWorkers = n
			return nil
		},
	},
}

// loadServerConfig resolves every option as flag > environment variable >
// default. To add an option, add a resolver to the table above.
func loadServerConfig(args []string) (ServerConfig, error) {
	cfg := ServerConfig{}

	fs := flag.NewFlagSet("molgrid-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flagVars := make(map[string]*string, len(resolvers))
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = fs.String(resolver.flagName, "", resolver.description)
	}
	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := os.Getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		if err := resolver.setter(&cfg, value); err != nil {
			return ServerConfig{}, err
		}
	}

	return cfg, nil
}

// usage prints every option with its environment variable and default.
func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage of molgrid-server:")
	for _, r := range resolvers {
		fmt.Fprintf(w, "  -%s (env %s, default %q)\n      %s\n", r.flagName, r.envVarName, r.defaultVal, r.description)
	}
}

// loadChartConfigFromFile reads and validates a chart config JSON file.
func loadChartConfigFromFile(path string) (reaction.ChartConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return reaction.ChartConfig{}, err
	}

	var cfg reaction.ChartConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return reaction.ChartConfig{}, err
	}

	if err := reaction.ValidateChartConfig(cfg); err != nil {
		return reaction.ChartConfig{}, err
	}
	return cfg, nil
}

// applyInitialChart creates the chart described by chartFile, replacing any
// chart already registered under id.
func applyInitialChart(srv *Server, chartFile string, id reaction.ChartID) error {
	cfg, err := loadChartConfigFromFile(chartFile)
	if err != nil {
		return err
	}
	_, _, err = srv.putChart(id, cfg)
	return err
}
