package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/gilchrisn/dtn-routing-service/pkg/routing"
	"github.com/gilchrisn/dtn-routing-service/pkg/sim"
)

const (
	defaultStep         = 1.0
	defaultTransferTime = 1.0
	defaultBufferSize   = 100
)

// options defines the command line options for dtnsim. Routing settings
// given here override the config file.
type options struct {
	ConfigFile   string   `short:"C" long:"config" description:"Path to a YAML/JSON/TOML routing config file"`
	TraceFile    string   `short:"t" long:"trace" description:"Contact and message trace to replay" required:"true"`
	Policy       string   `short:"p" long:"policy" description:"Forwarding policy {binary, binaryv1, epic}"`
	Until        float64  `short:"u" long:"until" description:"Simulated seconds to run; 0 runs one step past the last event"`
	OutDir       string   `short:"o" long:"outdir" description:"Directory for exported series"`
	Format       string   `short:"f" long:"format" description:"Export format {csv, jsonl, both}"`
	Listen       string   `short:"l" long:"listen" description:"Serve the introspection API on this address, e.g. :8080"`
	Origins      []string `long:"origin" description:"Allowed CORS origin for the API; may be repeated"`
	LogLevel     string   `long:"loglevel" description:"Logging level {trace, debug, info, warn, error}"`
	Step         float64  `long:"step" description:"Simulated seconds per tick"`
	TransferTime float64  `long:"transfertime" description:"Simulated seconds per message transfer"`
	BufferSize   int      `long:"buffer" description:"Messages buffered per node"`
}

// loadConfig parses the command line
func loadConfig(args []string) (*options, error) {
	opts := options{
		Step:         defaultStep,
		TransferTime: defaultTransferTime,
		BufferSize:   defaultBufferSize,
	}

	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if opts.Step <= 0 || opts.TransferTime < 0 {
		return nil, fmt.Errorf("loadConfig: step must be positive and transfer time non-negative")
	}
	if opts.BufferSize <= 0 {
		return nil, fmt.Errorf("loadConfig: buffer must be positive, got %d", opts.BufferSize)
	}
	return &opts, nil
}

// routingConfig loads the config file, if any, and applies flag overrides
func (o *options) routingConfig() (*routing.Config, error) {
	cfg := routing.NewConfig()
	if o.ConfigFile != "" {
		if err := cfg.LoadFromFile(o.ConfigFile); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", o.ConfigFile, err)
		}
	}

	if o.Policy != "" {
		cfg.Set("routing.policy", o.Policy)
	}
	if o.OutDir != "" {
		cfg.Set("export.dir", o.OutDir)
	}
	if o.Format != "" {
		cfg.Set("export.format", o.Format)
	}
	if o.LogLevel != "" {
		cfg.Set("logging.level", o.LogLevel)
	}
	return cfg, nil
}

func (o *options) simOptions() *sim.Options {
	opts := sim.DefaultOptions()
	opts.Step = o.Step
	opts.TransferTime = o.TransferTime
	opts.BufferSize = o.BufferSize
	return opts
}

func exitOnFlagError(err error) {
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		os.Exit(0)
	}
	os.Exit(1)
}
