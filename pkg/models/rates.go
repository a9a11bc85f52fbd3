package models

import "time"

// RateSnapshot holds benchmark rates (in percent) keyed by normalized name,
// e.g. "conventional30" or "fha30".
type RateSnapshot struct {
	Source      string             `json:"source"`
	Rates       map[string]float64 `json:"rates"`
	LastUpdated time.Time          `json:"last_updated"`
	FetchedAt   time.Time          `json:"fetched_at"`
}

// Rate returns the named benchmark rate.
func (s *RateSnapshot) Rate(key string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.Rates[key]
	return v, ok
}
