package models

import (
	"reflect"
	"testing"
	"time"
)

func TestComputeBioMetrics(t *testing.T) {
	now := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		score     int
		bucket    string
		wantChron int
		wantBio   float64
		wantSleep int
		wantHRV   int
		wantRHR   int
	}{
		{"older bucket", 72, "40-49", 45, 45.7, 69, 53, 65},
		{"young bucket", 72, "18-29", 24, 24.4, 69, 53, 65},
		{"missing answer uses default bucket", 72, "", 35, 35.5, 69, 53, 65},
		{"unknown bucket at baseline score", 75, "70+", 30, 30, 72, 55, 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ComputeBioMetrics(tt.score, tt.bucket, now)
			if m.ChronologicalAge != tt.wantChron || m.BiologicalAge != tt.wantBio {
				t.Errorf("ages = %d/%v, want %d/%v", m.ChronologicalAge, m.BiologicalAge, tt.wantChron, tt.wantBio)
			}
			if m.SleepScore != tt.wantSleep || m.HRV != tt.wantHRV || m.RHR != tt.wantRHR {
				t.Errorf("sleep/hrv/rhr = %d/%d/%d, want %d/%d/%d", m.SleepScore, m.HRV, m.RHR, tt.wantSleep, tt.wantHRV, tt.wantRHR)
			}
		})
	}
}

func TestComputeBioMetricsClampsSleepScore(t *testing.T) {
	if got := ComputeBioMetrics(30, "", time.Now()).SleepScore; got != MinSleepScore {
		t.Errorf("expected sleep score clamped to %d, got %d", MinSleepScore, got)
	}
	if got := ComputeBioMetrics(120, "", time.Now()).SleepScore; got != MaxSleepScore {
		t.Errorf("expected sleep score clamped to %d, got %d", MaxSleepScore, got)
	}
}

func TestHealthHistory(t *testing.T) {
	now := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)

	got := ComputeBioMetrics(72, "", now).HealthHistory
	want := []HealthPoint{
		{"Sep", 62}, {"Oct", 64}, {"Nov", 66}, {"Dec", 68}, {"Jan", 70}, {"Feb", 72},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("history = %v, want %v", got, want)
	}

	low := ComputeBioMetrics(41, "", now).HealthHistory
	if low[0].Score != MinHistoryScore || low[len(low)-1].Score != 41 {
		t.Errorf("expected clamped history ending at the score, got %v", low)
	}
	// The current month keeps the raw score even outside the clamp range.
	if last := ComputeBioMetrics(30, "", now).HealthHistory[5]; last.Score != 30 {
		t.Errorf("expected current month score 30, got %d", last.Score)
	}
}

func TestBiomarkersByCategory(t *testing.T) {
	markers := []Biomarker{
		{Name: "Fasting Glucose"},
		{Name: "HbA1c"},
		{Name: "LDL Cholesterol"},
		{Name: "TSH"},
		{Name: "Free Testosterone"},
		{Name: "hs-CRP"},
		{Name: "Ferritin"},
		{Name: "Vitamin D"},
		{Name: "Serum Iron"},
		{Name: "Uric Acid"},
	}
	tests := []struct {
		category string
		want     []string
	}{
		{CategoryMetabolic, []string{"Fasting Glucose", "HbA1c", "LDL Cholesterol"}},
		{CategoryHormonal, []string{"TSH", "Free Testosterone"}},
		{CategoryInflammation, []string{"hs-CRP", "Ferritin"}},
		{CategoryNutrients, []string{"Vitamin D", "Serum Iron"}},
		{"Genetics", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got := []string{}
			for _, b := range BiomarkersByCategory(markers, tt.category) {
				got = append(got, b.Name)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	groups := GroupBiomarkers(nil)
	if len(groups) != len(BiomarkerCategories) {
		t.Fatalf("expected every category, got %v", groups)
	}
	for cat, list := range groups {
		if list == nil || len(list) != 0 {
			t.Errorf("expected empty non-nil list for %s, got %#v", cat, list)
		}
	}
}
