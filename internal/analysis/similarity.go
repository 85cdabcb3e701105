package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/tordrt/schemascope/internal/schema"
)

// TableSimilarity is the column-set overlap between two tables
type TableSimilarity struct {
	TableA string `json:"table_a"`
	TableB string `json:"table_b"`
	// Score is |A∩B| / |A∪B| as a percentage
	Score float64 `json:"score"`
	// Containment is |A∩B| / min(|A|,|B|) as a percentage
	Containment   float64  `json:"containment"`
	SharedColumns []string `json:"shared_columns"`
	OnlyInA       []string `json:"only_in_a"`
	OnlyInB       []string `json:"only_in_b"`
	Identical     bool     `json:"identical"`
}

// FindSimilarTables compares every pair of tables and returns the pairs scoring
// at or above opts.Threshold, highest score first.
func FindSimilarTables(s *schema.Schema, opts Options) []TableSimilarity {
	ignore := opts.ignoreSet()

	type candidate struct {
		name    string
		columns map[string]bool
	}

	candidates := make([]candidate, 0, len(s.Tables))
	for i := range s.Tables {
		cols := columnSet(&s.Tables[i], ignore)
		if len(cols) < opts.MinColumns {
			continue
		}
		candidates = append(candidates, candidate{name: s.Tables[i].Name, columns: cols})
	}

	var results []TableSimilarity
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			sim := compareSets(candidates[i].name, candidates[j].name, candidates[i].columns, candidates[j].columns)
			if sim.Score >= opts.Threshold && len(sim.SharedColumns) > 0 {
				results = append(results, sim)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].TableA != results[j].TableA {
			return results[i].TableA < results[j].TableA
		}
		return results[i].TableB < results[j].TableB
	})

	return results
}

// ScoreTables compares two tables regardless of threshold or minimum size
func ScoreTables(a, b *schema.Table, opts Options) TableSimilarity {
	ignore := opts.ignoreSet()
	return compareSets(a.Name, b.Name, columnSet(a, ignore), columnSet(b, ignore))
}

func compareSets(nameA, nameB string, a, b map[string]bool) TableSimilarity {
	sim := TableSimilarity{
		TableA:        nameA,
		TableB:        nameB,
		SharedColumns: []string{},
		OnlyInA:       []string{},
		OnlyInB:       []string{},
	}

	for col := range a {
		if b[col] {
			sim.SharedColumns = append(sim.SharedColumns, col)
		} else {
			sim.OnlyInA = append(sim.OnlyInA, col)
		}
	}
	for col := range b {
		if !a[col] {
			sim.OnlyInB = append(sim.OnlyInB, col)
		}
	}
	sort.Strings(sim.SharedColumns)
	sort.Strings(sim.OnlyInA)
	sort.Strings(sim.OnlyInB)

	shared := len(sim.SharedColumns)
	union := len(a) + len(b) - shared
	if union == 0 {
		return sim
	}

	sim.Score = roundPercent(float64(shared) / float64(union))
	if smaller := min(len(a), len(b)); smaller > 0 {
		sim.Containment = roundPercent(float64(shared) / float64(smaller))
	}
	sim.Identical = shared == union

	return sim
}

// columnSet returns the lower-cased column names of a table minus ignored ones
func columnSet(t *schema.Table, ignore map[string]bool) map[string]bool {
	set := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		name := strings.ToLower(col.Name)
		if ignore[name] {
			continue
		}
		set[name] = true
	}
	return set
}

// roundPercent converts a ratio to a percentage with one decimal place
func roundPercent(ratio float64) float64 {
	return math.Round(ratio*1000) / 10
}
