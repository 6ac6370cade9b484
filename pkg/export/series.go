// Package export writes historized lambda and replica series to tabular sinks.
package export

import (
	"sort"
)

// Series maps a column key (node or message id) to its historized values
type Series map[string][]float64

// Columns returns the keys in a stable order
func (s Series) Columns() []string {
	cols := make([]string, 0, len(s))
	for k := range s {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Rows returns the length of the longest column
func (s Series) Rows() int {
	maxRows := 0
	for _, v := range s {
		if len(v) > maxRows {
			maxRows = len(v)
		}
	}
	return maxRows
}

// Clone returns a deep copy
func (s Series) Clone() Series {
	out := make(Series, len(s))
	for k, v := range s {
		cp := make([]float64, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Last returns the newest value of every column
func (s Series) Last() map[string]float64 {
	out := make(map[string]float64, len(s))
	for k, v := range s {
		if len(v) > 0 {
			out[k] = v[len(v)-1]
		}
	}
	return out
}
