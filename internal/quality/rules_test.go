package quality

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultRulesAreValid(t *testing.T) {
	rules := DefaultRules()
	require.NoError(t, ValidateRules(rules))
	require.Len(t, rules, 2)

	energy := rules[0]
	assert.Equal(t, TableEnergyConsumption, energy.Table)
	assert.Equal(t, 30*24*time.Hour, energy.Window)
	assert.True(t, energy.IsRequired("consumption_mwh"))

	weather := rules[1]
	assert.Equal(t, TableWeatherData, weather.Table)
	assert.Equal(t, 7*24*time.Hour, weather.Window)
	assert.False(t, weather.IsRequired("humidity"))
}

func TestRangeRule_Contains(t *testing.T) {
	closed := RangeRule{Field: "humidity", Min: ptr(0), Max: ptr(100)}
	assert.True(t, closed.Contains(0))
	assert.True(t, closed.Contains(100))
	assert.False(t, closed.Contains(-0.1))
	assert.False(t, closed.Contains(100.1))

	positive := RangeRule{Field: "pressure", Min: ptr(0), ExclusiveMin: true}
	assert.False(t, positive.Contains(0))
	assert.True(t, positive.Contains(0.5))
	assert.True(t, positive.Contains(1e9))

	assert.False(t, closed.Contains(math.NaN()))
	assert.False(t, positive.Contains(math.NaN()))
	assert.False(t, RangeRule{Field: "open"}.Contains(math.NaN()))
}

func TestLoadRules(t *testing.T) {
	path := writeRules(t, `
tables:
  - table: energy_consumption
    window: 48h
    required_fields:
      - field: consumption_mwh
        primary: true
    range_rules:
      - field: consumption_mwh
        min: 0
        max: 500000
        primary: true
    outlier_rules:
      - field: consumption_mwh
        above: 50000
    track_freshness: true
  - table: weather_data
    required_fields:
      - field: temperature
        primary: true
    range_rules:
      - field: pressure
        min: 0
        exclusive_min: true
`)

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, 48*time.Hour, rules[0].Window)
	require.Len(t, rules[0].RangeRules, 1)
	assert.Equal(t, 500000.0, *rules[0].RangeRules[0].Max)
	assert.Equal(t, 50000.0, rules[0].OutlierRules[0].Above)
	assert.True(t, rules[0].TrackFreshness)

	// missing window falls back to the default
	assert.Equal(t, DefaultWindow, rules[1].Window)
	assert.True(t, rules[1].RangeRules[0].ExclusiveMin)
	assert.Nil(t, rules[1].RangeRules[0].Max)
}

func TestLoadRules_UnknownField(t *testing.T) {
	path := writeRules(t, `
tables:
  - table: energy_consumption
    windw: 48h
`)

	_, err := LoadRules(path)
	assert.Error(t, err)
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []TableRules
	}{
		{"empty", nil},
		{"no table name", []TableRules{{Window: time.Hour}}},
		{"duplicate table", []TableRules{{Table: "a", Window: time.Hour}, {Table: "a", Window: time.Hour}}},
		{"zero window", []TableRules{{Table: "a"}}},
		{"unbounded range", []TableRules{{Table: "a", Window: time.Hour, RangeRules: []RangeRule{{Field: "x"}}}}},
		{"inverted range", []TableRules{{Table: "a", Window: time.Hour, RangeRules: []RangeRule{{Field: "x", Min: ptr(5), Max: ptr(1)}}}}},
		{"unnamed required", []TableRules{{Table: "a", Window: time.Hour, RequiredFields: []FieldRule{{}}}}},
		{"unnamed outlier", []TableRules{{Table: "a", Window: time.Hour, OutlierRules: []OutlierRule{{Above: 1}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateRules(tt.rules))
		})
	}
}
