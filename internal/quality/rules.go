package quality

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Monitored table names
const (
	TableEnergyConsumption = "energy_consumption"
	TableWeatherData       = "weather_data"
)

// FieldRule marks a measurement field that must be populated
type FieldRule struct {
	Field   string `yaml:"field" json:"field"`
	Primary bool   `yaml:"primary" json:"primary"` // primary → HIGH, auxiliary → MEDIUM
}

// RangeRule declares the valid range of a field. A nil bound is open.
// ExclusiveMin makes Min a strict lower bound (pressure > 0).
type RangeRule struct {
	Field        string   `yaml:"field" json:"field"`
	Min          *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max          *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	ExclusiveMin bool     `yaml:"exclusive_min,omitempty" json:"exclusive_min,omitempty"`
	Primary      bool     `yaml:"primary" json:"primary"`
}

// Contains reports whether v satisfies the rule. NaN is never in range.
func (r RangeRule) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if r.Min != nil {
		if r.ExclusiveMin && v <= *r.Min {
			return false
		}
		if !r.ExclusiveMin && v < *r.Min {
			return false
		}
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// OutlierRule flags in-range values above a soft bound as potential outliers
type OutlierRule struct {
	Field string  `yaml:"field" json:"field"`
	Above float64 `yaml:"above" json:"above"`
}

// TableRules is the static rule set of one monitored table
// ⭐ SSOT: 테이블별 품질 규칙은 여기서만
type TableRules struct {
	Table          string        `yaml:"table" json:"table"`
	Window         time.Duration `yaml:"window" json:"window"`
	RequiredFields []FieldRule   `yaml:"required_fields" json:"required_fields"`
	RangeRules     []RangeRule   `yaml:"range_rules" json:"range_rules"`
	OutlierRules   []OutlierRule `yaml:"outlier_rules,omitempty" json:"outlier_rules,omitempty"`
	TrackFreshness bool          `yaml:"track_freshness" json:"track_freshness"`
}

// IsRequired reports whether field is in the required set
func (t TableRules) IsRequired(field string) bool {
	for _, f := range t.RequiredFields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// RuleSet is the YAML document root
type RuleSet struct {
	Tables []TableRules `yaml:"tables"`
}

// DefaultWindow applies when a table declares no window
const DefaultWindow = 30 * 24 * time.Hour

func ptr(v float64) *float64 { return &v }

// DefaultRules returns the built-in rules for the monitored tables
func DefaultRules() []TableRules {
	return []TableRules{
		{
			Table:  TableEnergyConsumption,
			Window: 30 * 24 * time.Hour,
			RequiredFields: []FieldRule{
				{Field: "consumption_mwh", Primary: true},
			},
			RangeRules: []RangeRule{
				{Field: "consumption_mwh", Min: ptr(0), Max: ptr(1_000_000), Primary: true},
			},
			OutlierRules: []OutlierRule{
				{Field: "consumption_mwh", Above: 100_000},
			},
			TrackFreshness: true,
		},
		{
			Table:  TableWeatherData,
			Window: 7 * 24 * time.Hour,
			RequiredFields: []FieldRule{
				{Field: "temperature", Primary: true},
			},
			RangeRules: []RangeRule{
				{Field: "temperature", Min: ptr(-50), Max: ptr(150), Primary: true}, // °F
				{Field: "humidity", Min: ptr(0), Max: ptr(100)},
				{Field: "pressure", Min: ptr(0), ExclusiveMin: true},
			},
			TrackFreshness: true,
		},
	}
}

// LoadRules reads a YAML rule file.
// Unknown keys fail the load so typos never silently disable a rule.
func LoadRules(path string) ([]TableRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var set RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil {
		return nil, fmt.Errorf("decode rules file: %w", err)
	}

	for i := range set.Tables {
		if set.Tables[i].Window == 0 {
			set.Tables[i].Window = DefaultWindow
		}
	}

	if err := ValidateRules(set.Tables); err != nil {
		return nil, err
	}
	return set.Tables, nil
}

// ValidateRules checks a rule set for structural errors
func ValidateRules(rules []TableRules) error {
	if len(rules) == 0 {
		return errors.New("rules: no monitored tables")
	}

	seen := make(map[string]bool, len(rules))
	for _, t := range rules {
		if t.Table == "" {
			return errors.New("rules: table name is required")
		}
		if seen[t.Table] {
			return fmt.Errorf("rules: duplicate table %q", t.Table)
		}
		seen[t.Table] = true

		if t.Window <= 0 {
			return fmt.Errorf("rules: %s: window must be positive", t.Table)
		}
		for _, f := range t.RequiredFields {
			if f.Field == "" {
				return fmt.Errorf("rules: %s: required field without name", t.Table)
			}
		}
		for _, r := range t.RangeRules {
			if r.Field == "" {
				return fmt.Errorf("rules: %s: range rule without field", t.Table)
			}
			if r.Min == nil && r.Max == nil {
				return fmt.Errorf("rules: %s.%s: range rule needs min or max", t.Table, r.Field)
			}
			if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				return fmt.Errorf("rules: %s.%s: min %.2f > max %.2f", t.Table, r.Field, *r.Min, *r.Max)
			}
		}
		for _, o := range t.OutlierRules {
			if o.Field == "" {
				return fmt.Errorf("rules: %s: outlier rule without field", t.Table)
			}
		}
	}
	return nil
}
