package models

import (
	"math"
	"strconv"
	"strings"
)

// Fallbacks applied when the plan service omits context fields.
const (
	DefaultPatientName = "Guest"
	DefaultHealthScore = 78
)

// Biomarker is one measured lab value.
type Biomarker struct {
	Name   string     `json:"name"`
	Value  FlexString `json:"value"`
	Unit   string     `json:"unit,omitempty"`
	Status string     `json:"status"`
	RefMin FlexString `json:"ref_min,omitempty"`
	RefMax FlexString `json:"ref_max,omitempty"`
}

// Strategy describes a meal or fitness approach proposed by the plan service.
// Context strategies use name/desc while proposals use title/desc.
type Strategy struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Name  string `json:"name,omitempty"`
	Desc  string `json:"desc,omitempty"`
	Pros  string `json:"pros,omitempty"`
}

// DisplayName returns the title, falling back to the name.
func (s Strategy) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

// Score is a 0-100 health score. The plan service generates it with an LLM, so
// it may arrive as an integer, a float or a numeric string. Anything else
// decodes as zero, which ApplyDefaults replaces.
type Score int

// UnmarshalJSON rounds floats and parses strings; it never fails.
func (s *Score) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*s = 0
		return nil
	}
	*s = Score(math.Round(v))
	return nil
}

// HealthContext is the analysed lab report returned by upload or demo load.
type HealthContext struct {
	PatientName string      `json:"patient_name"`
	HealthScore Score       `json:"health_score"`
	Summary     string      `json:"summary,omitempty"`
	Biomarkers  []Biomarker `json:"biomarkers"`
	Issues      []Issue     `json:"issues"`
	Strategies  []Strategy  `json:"strategies,omitempty"`
}

// ApplyDefaults fills the named fallbacks for fields the service left empty.
func (c *HealthContext) ApplyDefaults() {
	if c.PatientName == "" {
		c.PatientName = DefaultPatientName
	}
	if c.HealthScore <= 0 {
		c.HealthScore = DefaultHealthScore
	}
	if c.Biomarkers == nil {
		c.Biomarkers = []Biomarker{}
	}
	if c.Issues == nil {
		c.Issues = []Issue{}
	}
	if c.Strategies == nil {
		c.Strategies = []Strategy{}
	}
}

// Recipe is the detail returned for a single meal.
type Recipe struct {
	Steps  []string              `json:"steps"`
	Macros map[string]FlexString `json:"macros"`
}

// ShoppingList maps a category to its items.
type ShoppingList map[string][]string
