package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Format names a sink implementation
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
	FormatBoth  Format = "both"
)

// ErrUnknownFormat is returned by NewSink for an unsupported format
var ErrUnknownFormat = errors.New("unknown export format")

// Sink receives one named table per export event
type Sink interface {
	Export(name string, series Series) error
}

// NewSink builds the sink for format writing under dir
func NewSink(format Format, dir, prefix string) (Sink, error) {
	switch format {
	case FormatCSV, "":
		return &CSVSink{Dir: dir, Prefix: prefix}, nil
	case FormatJSONL:
		return &JSONLinesSink{Dir: dir, Prefix: prefix}, nil
	case FormatBoth:
		return MultiSink{&CSVSink{Dir: dir, Prefix: prefix}, &JSONLinesSink{Dir: dir, Prefix: prefix}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// CSVSink writes <Dir>/<Prefix><name>.csv with one column per key and one
// row per historized value. Shorter columns leave empty cells.
type CSVSink struct {
	Dir    string
	Prefix string
}

// Path returns the file a table named name is written to
func (c *CSVSink) Path(name string) string {
	return filepath.Join(c.Dir, c.Prefix+name+".csv")
}

func (c *CSVSink) Export(name string, series Series) error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(c.Path(name))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	cols := series.Columns()
	if err := w.Write(cols); err != nil {
		return err
	}

	row := make([]string, len(cols))
	for i := 0; i < series.Rows(); i++ {
		for j, col := range cols {
			values := series[col]
			if i < len(values) {
				row[j] = strconv.FormatFloat(values[i], 'g', -1, 64)
			} else {
				row[j] = ""
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return file.Close()
}

// SeriesRecord is one line of a JSON-lines export
type SeriesRecord struct {
	Series string    `json:"series"`
	Key    string    `json:"key"`
	Values []float64 `json:"values"`
}

// JSONLinesSink writes <Dir>/<Prefix><name>.jsonl, one record per column
type JSONLinesSink struct {
	Dir    string
	Prefix string
}

// Path returns the file a table named name is written to
func (j *JSONLinesSink) Path(name string) string {
	return filepath.Join(j.Dir, j.Prefix+name+".jsonl")
}

func (j *JSONLinesSink) Export(name string, series Series) error {
	if err := os.MkdirAll(j.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(j.Path(name))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, col := range series.Columns() {
		rec := SeriesRecord{Series: name, Key: col, Values: series[col]}
		if err := encoder.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", name, col, err)
		}
	}
	return file.Close()
}

// MultiSink exports to every sink and joins their errors
type MultiSink []Sink

func (m MultiSink) Export(name string, series Series) error {
	var errs []error
	for _, s := range m {
		if err := s.Export(name, series); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
