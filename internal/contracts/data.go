package contracts

import "time"

// Record is one row of a monitored table as seen by the quality scanner
// ⭐ SSOT: 모니터링 대상 레코드 표현은 여기서만
type Record struct {
	ID        int64               `json:"id"`
	Region    string              `json:"region"`
	Category  string              `json:"category,omitempty"` // energy_type for energy_consumption, empty for weather_data
	Timestamp time.Time           `json:"timestamp"`
	Fields    map[string]*float64 `json:"fields"` // nil value = SQL NULL
}

// Value returns the field value and whether it is populated
func (r Record) Value(field string) (float64, bool) {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// NaturalKey is the business identity used for duplicate detection
func (r Record) NaturalKey() string {
	return r.Region + "|" + r.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + r.Category
}

// Window is a half-open [From, To) scan window
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TrailingWindow returns the window of length d ending at now.
// To is left open-ended so future-dated rows are still read.
func TrailingWindow(now time.Time, d time.Duration) Window {
	return Window{From: now.Add(-d)}
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	if t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}
