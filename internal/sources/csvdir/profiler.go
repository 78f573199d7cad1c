package csvdir

import (
	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

// profiler tallies per-column null and distinct counts across every table the
// source reads. An empty cell counts as null; distinct counts ignore nulls.
type profiler struct {
	tables []string
	counts map[string]*columnTally
}

type columnTally struct {
	table    string
	column   string
	nulls    int
	distinct map[string]struct{}
}

func newProfiler() *profiler {
	return &profiler{counts: make(map[string]*columnTally)}
}

// observe tallies one row of a table. Short rows count the missing trailing
// columns as nulls.
func (p *profiler) observe(table string, header, values []string) {
	for i, col := range header {
		key := table + "\x00" + col
		tally, ok := p.counts[key]
		if !ok {
			tally = &columnTally{
				table:    table,
				column:   col,
				distinct: make(map[string]struct{}),
			}
			p.counts[key] = tally
			p.tables = append(p.tables, key)
		}

		var value string
		if i < len(values) {
			value = values[i]
		}
		if value == "" {
			tally.nulls++
			continue
		}
		tally.distinct[value] = struct{}{}
	}
}

// snapshot returns the tallies collected so far, ordered by table then column.
func (p *profiler) snapshot() []domain.ColumnProfile {
	profiles := make([]domain.ColumnProfile, 0, len(p.counts))
	for _, key := range p.tables {
		tally := p.counts[key]
		profiles = append(profiles, domain.ColumnProfile{
			Table:         tally.table,
			Column:        tally.column,
			NullCount:     tally.nulls,
			DistinctCount: len(tally.distinct),
		})
	}
	domain.SortProfiles(profiles)
	return profiles
}
