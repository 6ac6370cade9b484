package routing

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gilchrisn/dtn-routing-service/pkg/estimator"
	"github.com/gilchrisn/dtn-routing-service/pkg/export"
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/replica"
)

// ContactScope selects what a pending disconnect is keyed by
type ContactScope string

const (
	// ScopeNeighbor matches a down with the next up of the same neighbour
	ScopeNeighbor ContactScope = "neighbor"
	// ScopeNode matches a down with the local node's next up with anyone
	ScopeNode ContactScope = "node"
)

// Config manages routing configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Policy parameters
	v.SetDefault("routing.policy", string(PolicyBinary))
	v.SetDefault("routing.candidate_order", string(OrderInsertion))

	// Estimation parameters
	v.SetDefault("replica.cap", 10.0)
	v.SetDefault("estimator.kind", string(estimator.KindBatch))
	v.SetDefault("contact.scope", string(ScopeNeighbor))
	v.SetDefault("contact.keep_first_down", false)

	// Variant parameters
	v.SetDefault("binaryv1.forward_cap", 2)
	v.SetDefault("epic.scheduler", "0")
	v.SetDefault("epic.export_at", 43200.0)

	// Export parameters
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.prefix", "")
	v.SetDefault("export.format", string(export.FormatCSV))

	// Logging parameters
	v.SetDefault("logging.level", "info")

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

func (c *Config) Policy() Policy           { return Policy(c.v.GetString("routing.policy")) }
func (c *Config) CandidateOrder() Ordering { return Ordering(c.v.GetString("routing.candidate_order")) }

func (c *Config) ReplicaCap() float64             { return c.v.GetFloat64("replica.cap") }
func (c *Config) EstimatorKind() estimator.Kind   { return estimator.Kind(c.v.GetString("estimator.kind")) }
func (c *Config) ContactScope() ContactScope      { return ContactScope(c.v.GetString("contact.scope")) }
func (c *Config) KeepFirstDown() bool             { return c.v.GetBool("contact.keep_first_down") }
func (c *Config) ForwardCap() int                 { return c.v.GetInt("binaryv1.forward_cap") }
func (c *Config) Scheduler() models.NodeID        { return models.NodeID(c.v.GetString("epic.scheduler")) }
func (c *Config) ExportAt() float64               { return c.v.GetFloat64("epic.export_at") }
func (c *Config) ExportDir() string               { return c.v.GetString("export.dir") }
func (c *Config) ExportPrefix() string            { return c.v.GetString("export.prefix") }
func (c *Config) ExportFormat() export.Format     { return export.Format(c.v.GetString("export.format")) }
func (c *Config) LogLevel() string                { return c.v.GetString("logging.level") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// NewSink builds the export sink described by the export.* keys
func (c *Config) NewSink() (export.Sink, error) {
	return export.NewSink(c.ExportFormat(), c.ExportDir(), c.ExportPrefix())
}

// predictorFor returns the default predictor unless replica.cap is positive
func predictorFor(c *Config) replica.Predictor {
	p := replica.Default()
	if limit := c.ReplicaCap(); limit > 0 {
		p.Cap = limit
	}
	return p
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "routing").Logger()
}
