package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/dtn-routing-service/pkg/estimator"
	"github.com/gilchrisn/dtn-routing-service/pkg/export"
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
)

func TestConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	require.Equal(t, PolicyBinary, cfg.Policy())
	require.Equal(t, OrderInsertion, cfg.CandidateOrder())
	require.Equal(t, 10.0, cfg.ReplicaCap())
	require.Equal(t, estimator.KindBatch, cfg.EstimatorKind())
	require.Equal(t, ScopeNeighbor, cfg.ContactScope())
	require.False(t, cfg.KeepFirstDown())
	require.Equal(t, 2, cfg.ForwardCap())
	require.Equal(t, models.NodeID("0"), cfg.Scheduler())
	require.Equal(t, 43200.0, cfg.ExportAt())
	require.Equal(t, export.FormatCSV, cfg.ExportFormat())
}

func TestConfigLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	content := `
routing:
  policy: epic
  candidate_order: prediction
epic:
  scheduler: n7
  export_at: 3600
replica:
  cap: 25
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	require.Equal(t, PolicyEpic, cfg.Policy())
	require.Equal(t, OrderByPrediction, cfg.CandidateOrder())
	require.Equal(t, models.NodeID("n7"), cfg.Scheduler())
	require.Equal(t, 3600.0, cfg.ExportAt())
	require.Equal(t, 25.0, cfg.ReplicaCap())
	require.Equal(t, 2, cfg.ForwardCap(), "unset keys keep defaults")
	require.Equal(t, zerolog.DebugLevel, cfg.CreateLogger().GetLevel())
}

func TestConfigMissingFile(t *testing.T) {
	cfg := NewConfig()
	require.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestCreateLoggerFallsBackToInfo(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("logging.level", "chatty")
	require.Equal(t, zerolog.InfoLevel, cfg.CreateLogger().GetLevel())
}

func TestConfigNewSink(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("export.dir", t.TempDir())
	cfg.Set("export.format", "jsonl")
	sink, err := cfg.NewSink()
	require.NoError(t, err)
	require.IsType(t, &export.JSONLinesSink{}, sink)
}
