package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/loonielabs/kpi-sentinel/internal/models"
)

// MetricConfig is the YAML shape of one KPI definition.
type MetricConfig struct {
	Key     string `yaml:"key"`
	Label   string `yaml:"label"`
	Section string `yaml:"section"`

	ValueType string `yaml:"valueType"`
	Mode      string `yaml:"mode"`

	K           *float64 `yaml:"k"`
	ZScoreLimit *float64 `yaml:"zScoreLimit"`
	PercentDrop *float64 `yaml:"percentDrop"`

	RollingWindow int `yaml:"rollingWindow"`

	ExcludeWeekdays []string `yaml:"excludeWeekdays"`
	Direction       string   `yaml:"direction"`
	SignalsEnabled  []string `yaml:"signalsEnabled"`

	YellowAt *int `yaml:"yellowAt"`
	RedAt    *int `yaml:"redAt"`

	MinRollingPoints  *int `yaml:"minRollingPoints"`
	MinSeasonalPoints *int `yaml:"minSeasonalPoints"`

	StaticLower *float64 `yaml:"staticLower"`
	StaticUpper *float64 `yaml:"staticUpper"`
}

// Tuning defaults applied when a metric omits a knob.
const (
	defaultK                 = 2.0
	defaultZScoreLimit       = 3.0
	defaultPercentDrop       = 0.30
	defaultMinRollingPoints  = 5
	defaultMinSeasonalPoints = 4
)

// BuildDefinitions resolves every configured metric into an evaluator
// definition. Invalid metrics are reported individually and skipped; one bad
// entry never blocks the rest of the catalogue.
func (c *Config) BuildDefinitions() ([]models.MetricDefinition, []error) {
	var (
		defs []models.MetricDefinition
		errs []error
		seen = make(map[string]bool, len(c.Metrics))
	)

	for i, mc := range c.Metrics {
		def, err := mc.definition()
		if err != nil {
			errs = append(errs, fmt.Errorf("metric %d (%s): %w", i, mc.Key, err))
			continue
		}
		if seen[def.Key] {
			errs = append(errs, fmt.Errorf("metric %d (%s): duplicate key", i, mc.Key))
			continue
		}
		seen[def.Key] = true
		defs = append(defs, def)
	}
	return defs, errs
}

func (mc MetricConfig) definition() (models.MetricDefinition, error) {
	def := models.MetricDefinition{
		Key:               mc.Key,
		Label:             mc.Label,
		Section:           mc.Section,
		ValueType:         models.ValueType(strings.ToLower(strings.TrimSpace(mc.ValueType))),
		Mode:              models.ModeDynamic,
		Direction:         models.DirectionBoth,
		K:                 defaultK,
		ZScoreLimit:       defaultZScoreLimit,
		PercentDrop:       defaultPercentDrop,
		RollingWindow:     mc.RollingWindow,
		Policy:            models.DefaultStatusPolicy(),
		MinRollingPoints:  defaultMinRollingPoints,
		MinSeasonalPoints: defaultMinSeasonalPoints,
	}
	if def.Label == "" {
		def.Label = def.Key
	}

	if mc.Mode != "" {
		def.Mode = models.Mode(strings.ToLower(strings.TrimSpace(mc.Mode)))
	}
	if mc.Direction != "" {
		def.Direction = models.Direction(strings.ToLower(strings.TrimSpace(mc.Direction)))
	}
	if mc.K != nil {
		def.K = *mc.K
	}
	if mc.ZScoreLimit != nil {
		def.ZScoreLimit = *mc.ZScoreLimit
	}
	if mc.PercentDrop != nil {
		def.PercentDrop = *mc.PercentDrop
	}
	if mc.YellowAt != nil {
		def.Policy.YellowAt = *mc.YellowAt
	}
	if mc.RedAt != nil {
		def.Policy.RedAt = *mc.RedAt
	}
	if mc.MinRollingPoints != nil {
		def.MinRollingPoints = *mc.MinRollingPoints
	}
	if mc.MinSeasonalPoints != nil {
		def.MinSeasonalPoints = *mc.MinSeasonalPoints
	}
	if mc.StaticLower != nil {
		def.Static.Lower = models.DefinedStat(*mc.StaticLower)
	}
	if mc.StaticUpper != nil {
		def.Static.Upper = models.DefinedStat(*mc.StaticUpper)
	}

	for _, name := range mc.ExcludeWeekdays {
		wd, err := parseWeekday(name)
		if err != nil {
			return models.MetricDefinition{}, err
		}
		if !def.WeekdayExcluded(wd) {
			def.ExcludeWeekdays = append(def.ExcludeWeekdays, wd)
		}
	}

	for _, raw := range mc.SignalsEnabled {
		code := models.SignalCode(strings.ToUpper(strings.TrimSpace(raw)))
		switch code {
		case models.SignalBreachLow, models.SignalBreachHigh, models.SignalSeasonalOutlier, models.SignalPercentSwing:
			def.SignalsEnabled = append(def.SignalsEnabled, code)
		default:
			return models.MetricDefinition{}, fmt.Errorf("unknown signal code %q", raw)
		}
	}

	if err := def.Validate(); err != nil {
		return models.MetricDefinition{}, err
	}
	return def, nil
}

// parseWeekday accepts full names, common three-letter abbreviations, and
// numeric form, all case-insensitively. Numbers count Monday as 0 through
// Sunday as 6, the convention of the measurement feeds this engine ingests.
func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday", "sun", "6":
		return time.Sunday, nil
	case "monday", "mon", "0":
		return time.Monday, nil
	case "tuesday", "tue", "tues", "1":
		return time.Tuesday, nil
	case "wednesday", "wed", "2":
		return time.Wednesday, nil
	case "thursday", "thu", "thur", "thurs", "3":
		return time.Thursday, nil
	case "friday", "fri", "4":
		return time.Friday, nil
	case "saturday", "sat", "5":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}
