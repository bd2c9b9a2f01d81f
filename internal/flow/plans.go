package flow

import (
	"strconv"
	"time"

	"github.com/BTreeMap/BioFlow/internal/models"
)

// Strategy names used for plan generation besides a consultation result.
const (
	ReshuffleStrategyName      = "Reshuffle"
	DefaultFitnessStrategyName = "Personalized Split"
	CustomMealBenefit          = "Custom Entry"
	DefaultCustomMealType      = "Snack"
)

// PlanDate returns the ISO date i days after now.
func PlanDate(now time.Time, i int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+i, 0, 0, 0, 0, now.Location())
}

// ShortWeekday returns the three-letter English weekday name.
func ShortWeekday(t time.Time) string {
	return t.Weekday().String()[:3]
}

// ShapeWeekPlan assigns each day today+i as its date, clears completion flags
// and guarantees a non-nil meal list. Dates sent by the service are ignored.
func ShapeWeekPlan(days []models.DayPlan, now time.Time) []models.DayPlan {
	out := make([]models.DayPlan, len(days))
	for i, day := range days {
		meals := make([]models.Meal, len(day.Meals))
		for j, m := range day.Meals {
			m.Completed = false
			meals[j] = m
		}
		day.Meals = meals
		day.Date = PlanDate(now, i).Format(models.DateLayout)
		day.Completed = false
		out[i] = day
	}
	return out
}

// ShapeWorkoutPlan assigns each day today+i as its date and weekday name and
// resets the per-exercise log fields.
func ShapeWorkoutPlan(days []models.WorkoutDay, now time.Time) []models.WorkoutDay {
	out := make([]models.WorkoutDay, len(days))
	for i, day := range days {
		date := PlanDate(now, i)
		day.Day = ShortWeekday(date)
		day.Date = date.Format(models.DateLayout)
		day.Exercises = resetExercises(day.Exercises)
		out[i] = day
	}
	return out
}

func resetExercises(in []models.Exercise) []models.Exercise {
	out := make([]models.Exercise, len(in))
	for i, ex := range in {
		ex.Completed = false
		ex.Weight = ""
		ex.PerformedReps = ""
		ex.Notes = ""
		out[i] = ex
	}
	return out
}

// MacroPercent returns value/target as a percentage capped at 100.
func MacroPercent(value models.FlexString, target int) int {
	if target <= 0 {
		return 0
	}
	pct := int(float64(value.Int())/float64(target)*100 + 0.5)
	return min(100, pct)
}

// AddMealToTotals adds a meal's macros to a day's running totals. Calories stay
// a plain number and the other macros carry a "g" suffix.
func AddMealToTotals(total models.Macros, meal models.Meal) models.Macros {
	return models.Macros{
		Calories: models.FlexString(strconv.Itoa(total.Calories.Int() + meal.Calories.Int())),
		Protein:  models.FlexString(strconv.Itoa(total.Protein.Int()+meal.Protein.Int()) + "g"),
		Carbs:    models.FlexString(strconv.Itoa(total.Carbs.Int()+meal.Carbs.Int()) + "g"),
		Fats:     models.FlexString(strconv.Itoa(total.Fats.Int()+meal.Fats.Int()) + "g"),
	}
}
