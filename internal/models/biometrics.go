package models

import (
	"math"
	"strings"
	"time"
)

// Biometric derivation constants.
const (
	DefaultAgeBucket         = "30-39"
	FallbackChronologicalAge = 30
	BioAgeBaselineScore      = 75
	HealthHistoryMonths      = 6
	MinHistoryScore          = 40
	MaxHistoryScore          = 100
	MinSleepScore            = 50
	MaxSleepScore            = 100
)

// AgeBuckets maps the lifestyle "age" answer to a representative age.
var AgeBuckets = map[string]int{
	"18-29": 24,
	"30-39": 35,
	"40-49": 45,
	"50-59": 55,
	"60+":   65,
}

// HealthPoint is one month of the health score history.
type HealthPoint struct {
	Month string `json:"month"`
	Score int    `json:"score"`
}

// BioMetrics are the dashboard figures derived from the health score and age group.
type BioMetrics struct {
	ChronologicalAge int           `json:"chronological_age"`
	BiologicalAge    float64       `json:"biological_age"`
	SleepScore       int           `json:"sleep_score"`
	HRV              int           `json:"hrv"`
	RHR              int           `json:"rhr"`
	HealthHistory    []HealthPoint `json:"health_history"`
}

// ComputeBioMetrics derives the dashboard figures. An empty age bucket counts
// as DefaultAgeBucket and an unknown one as FallbackChronologicalAge.
func ComputeBioMetrics(score int, ageBucket string, now time.Time) BioMetrics {
	if ageBucket == "" {
		ageBucket = DefaultAgeBucket
	}
	chron, ok := AgeBuckets[ageBucket]
	if !ok {
		chron = FallbackChronologicalAge
	}
	s := float64(score)
	impact := float64(BioAgeBaselineScore-score) / 200
	return BioMetrics{
		ChronologicalAge: chron,
		BiologicalAge:    math.Round(float64(chron)*(1+impact)*10) / 10,
		SleepScore:       clamp(int(math.Floor(s*0.9))+5, MinSleepScore, MaxSleepScore),
		HRV:              int(math.Floor(s*0.6 + 10)),
		RHR:              int(math.Floor(80 - s*0.2)),
		HealthHistory:    healthHistory(score, now),
	}
}

// healthHistory returns HealthHistoryMonths points, oldest first. The score
// drifts down two points per month back; the current month is the score itself.
func healthHistory(score int, now time.Time) []HealthPoint {
	history := make([]HealthPoint, 0, HealthHistoryMonths)
	for i := HealthHistoryMonths - 1; i >= 0; i-- {
		month := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, now.Location())
		p := HealthPoint{Month: month.Format("Jan"), Score: score}
		if i > 0 {
			p.Score = clamp(score-2*i, MinHistoryScore, MaxHistoryScore)
		}
		history = append(history, p)
	}
	return history
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// Biomarker categories in display order.
const (
	CategoryMetabolic    = "Metabolic"
	CategoryHormonal     = "Hormonal"
	CategoryInflammation = "Inflammation"
	CategoryNutrients    = "Nutrients"
)

// BiomarkerCategories lists the categories in display order.
var BiomarkerCategories = []string{CategoryMetabolic, CategoryHormonal, CategoryInflammation, CategoryNutrients}

var biomarkerKeywords = map[string][]string{
	CategoryMetabolic:    {"glucose", "hba1c", "insulin", "cholesterol", "triglycerides", "ldl", "hdl"},
	CategoryHormonal:     {"cortisol", "testosterone", "estrogen", "tsh", "thyroid"},
	CategoryInflammation: {"crp", "ferritin", "homocysteine"},
	CategoryNutrients:    {"vitamin", "iron", "magnesium", "zinc", "sodium", "potassium"},
}

// BiomarkersByCategory returns the biomarkers whose name contains one of the
// category keywords, case-insensitively. A marker may match several
// categories; an unknown category matches nothing.
func BiomarkersByCategory(biomarkers []Biomarker, category string) []Biomarker {
	keywords := biomarkerKeywords[category]
	out := []Biomarker{}
	for _, b := range biomarkers {
		name := strings.ToLower(b.Name)
		for _, k := range keywords {
			if strings.Contains(name, k) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// GroupBiomarkers classifies biomarkers into every category.
func GroupBiomarkers(biomarkers []Biomarker) map[string][]Biomarker {
	groups := make(map[string][]Biomarker, len(BiomarkerCategories))
	for _, cat := range BiomarkerCategories {
		groups[cat] = BiomarkersByCategory(biomarkers, cat)
	}
	return groups
}
