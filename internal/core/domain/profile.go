package domain

import "sort"

// ColumnProfile summarises one column of one source table: how many rows
// carried no value and how many distinct values were seen. The profiling
// report lists one row per column.
type ColumnProfile struct {
	Table         string `json:"table" yaml:"table"`
	Column        string `json:"column" yaml:"column"`
	NullCount     int    `json:"null_count" yaml:"null_count"`
	DistinctCount int    `json:"distinct_count" yaml:"distinct_count"`
}

// SortProfiles orders profiles by table then column for stable output.
func SortProfiles(profiles []ColumnProfile) {
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Table != profiles[j].Table {
			return profiles[i].Table < profiles[j].Table
		}
		return profiles[i].Column < profiles[j].Column
	})
}
