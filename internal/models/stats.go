package models

import "time"

// ScanStats collects the counters for one scan cycle. The caller accumulates
// them into a running total; there is no ambient mutable singleton.
type ScanStats struct {
	Fetched     int           `json:"fetched"`
	FilteredOut int           `json:"filtered_out"`
	NewStored   int           `json:"new_stored"`
	Duplicates  int           `json:"duplicates"`
	FetchErrors int           `json:"fetch_errors"`
	ItemErrors  int           `json:"item_errors"`
	Duration    time.Duration `json:"duration"`

	// FieldHits counts how often each extraction field matched, for
	// coverage monitoring of the pattern tables.
	FieldHits map[string]int `json:"field_hits"`
}

// NewScanStats returns stats with the hit counter map initialized.
func NewScanStats() ScanStats {
	return ScanStats{FieldHits: make(map[string]int)}
}

// CountFieldHits increments the per-field hit counters for one spec.
func (s *ScanStats) CountFieldHits(spec ExtractedSpec) {
	fields := map[string]bool{
		"model_number": spec.ModelNumber != "",
		"manufacturer": spec.Manufacturer != "",
		"capacity":     spec.Capacity != "",
		"speed":        spec.Speed != "",
		"latency":      spec.Latency != "",
		"color":        spec.Color != "",
	}
	for name, hit := range fields {
		if hit {
			s.FieldHits[name]++
		}
	}
}

// Add accumulates another cycle's counters into s.
func (s *ScanStats) Add(other ScanStats) {
	s.Fetched += other.Fetched
	s.FilteredOut += other.FilteredOut
	s.NewStored += other.NewStored
	s.Duplicates += other.Duplicates
	s.FetchErrors += other.FetchErrors
	s.ItemErrors += other.ItemErrors
	s.Duration += other.Duration
	if s.FieldHits == nil {
		s.FieldHits = make(map[string]int)
	}
	for name, n := range other.FieldHits {
		s.FieldHits[name] += n
	}
}
