// Package analysis finds likely-duplicate tables and columns in an extracted schema.
//
// Tables are compared by their column-name sets. Two tables score the
// percentage of their combined columns they share (intersection over union),
// after dropping bookkeeping columns every table tends to have.
package analysis

import (
	"fmt"
	"strings"
)

const (
	// DefaultThreshold is the minimum similarity score (percent) reported
	DefaultThreshold = 70.0
	// DefaultMinColumns is the minimum number of comparable columns a table needs
	DefaultMinColumns = 2
)

// DefaultIgnoreColumns are left out of column-set comparisons
var DefaultIgnoreColumns = []string{"id", "created_at", "updated_at"}

// Options tunes similarity detection
type Options struct {
	// Threshold is the minimum score, 0-100, for a pair to be reported
	Threshold float64
	// MinColumns skips tables with fewer comparable columns
	MinColumns int
	// IgnoreColumns are excluded from comparisons (case-insensitive)
	IgnoreColumns []string
}

// DefaultOptions returns the default analysis options
func DefaultOptions() Options {
	ignore := make([]string, len(DefaultIgnoreColumns))
	copy(ignore, DefaultIgnoreColumns)
	return Options{
		Threshold:     DefaultThreshold,
		MinColumns:    DefaultMinColumns,
		IgnoreColumns: ignore,
	}
}

// Validate checks option ranges
func (o Options) Validate() error {
	if o.Threshold < 0 || o.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %g", o.Threshold)
	}
	if o.MinColumns < 1 {
		return fmt.Errorf("min columns must be at least 1, got %d", o.MinColumns)
	}
	return nil
}

func (o Options) ignoreSet() map[string]bool {
	set := make(map[string]bool, len(o.IgnoreColumns))
	for _, name := range o.IgnoreColumns {
		set[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return set
}
