package models

import (
	"bytes"
	"encoding/json"
)

// DateLayout is the ISO calendar date format used for plan days and tracker keys.
const DateLayout = "2006-01-02"

// Macros holds per-meal or per-day macro figures as sent by the service.
type Macros struct {
	Calories FlexString `json:"calories"`
	Protein  FlexString `json:"protein"`
	Carbs    FlexString `json:"carbs"`
	Fats     FlexString `json:"fats"`
}

// Meal is one entry in a day plan.
type Meal struct {
	Title     string     `json:"title"`
	Type      string     `json:"type"`
	Calories  FlexString `json:"calories"`
	Protein   FlexString `json:"protein"`
	Carbs     FlexString `json:"carbs"`
	Fats      FlexString `json:"fats"`
	Benefit   string     `json:"benefit,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Completed bool       `json:"completed"`
}

// DayPlan is one day of the meal plan.
type DayPlan struct {
	Day         string `json:"day,omitempty"`
	Date        string `json:"date"`
	Meals       []Meal `json:"meals"`
	TotalMacros Macros `json:"total_macros"`
	Completed   bool   `json:"completed"`
}

// Exercise is one movement in a workout day. The service sometimes sends a bare
// string; UnmarshalJSON normalises that to an exercise with only a name.
type Exercise struct {
	Name          string     `json:"name"`
	Sets          FlexString `json:"sets,omitempty"`
	Reps          FlexString `json:"reps,omitempty"`
	RPE           FlexString `json:"rpe,omitempty"`
	Rest          string     `json:"rest,omitempty"`
	Tip           string     `json:"tip,omitempty"`
	Completed     bool       `json:"completed"`
	Weight        string     `json:"weight"`
	PerformedReps string     `json:"performedReps"`
	Notes         string     `json:"notes"`
}

type exerciseAlias Exercise

// UnmarshalJSON accepts either an object or a plain string.
func (e *Exercise) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*e = Exercise{Name: name}
		return nil
	}
	var a exerciseAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Exercise(a)
	return nil
}

// WorkoutDay is one day of the workout plan.
type WorkoutDay struct {
	Day       string     `json:"day"`
	Date      string     `json:"date"`
	Focus     string     `json:"focus,omitempty"`
	Warmup    []string   `json:"warmup,omitempty"`
	Exercises []Exercise `json:"exercises"`
	Cooldown  []string   `json:"cooldown,omitempty"`
	Benefit   string     `json:"benefit,omitempty"`
}

// SetLog is the last weight and rep count logged for an exercise.
type SetLog struct {
	Weight string `json:"weight"`
	Reps   string `json:"reps"`
	Date   string `json:"date"`
	Notes  string `json:"notes,omitempty"`
}
