package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/BioFlow/internal/models"
)

func (a *App) dayIndexLocked(date string) int {
	for i, d := range a.weekPlan {
		if d.Date == date {
			return i
		}
	}
	return -1
}

func (a *App) workoutIndexLocked(date string) int {
	for i, d := range a.workoutPlan {
		if d.Date == date {
			return i
		}
	}
	return -1
}

// MealsForDate returns the plan day for date.
func (a *App) MealsForDate(date string) (models.DayPlan, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.dayIndexLocked(date)
	if i < 0 {
		return models.DayPlan{}, false
	}
	day := a.weekPlan[i]
	day.Meals = append([]models.Meal{}, day.Meals...)
	return day, true
}

// WorkoutForDate returns the workout day for date.
func (a *App) WorkoutForDate(date string) (models.WorkoutDay, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.workoutIndexLocked(date)
	if i < 0 {
		return models.WorkoutDay{}, false
	}
	day := a.workoutPlan[i]
	day.Exercises = append([]models.Exercise{}, day.Exercises...)
	return day, true
}

// ToggleMeal flips a meal's completion and reports the new value.
func (a *App) ToggleMeal(ctx context.Context, date string, index int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.dayIndexLocked(date)
	if d < 0 {
		return false, fmt.Errorf("%s: %w", date, ErrNoPlanForDate)
	}
	meals := a.weekPlan[d].Meals
	if index < 0 || index >= len(meals) {
		return false, fmt.Errorf("meal %d: %w", index, ErrIndexOutOfRange)
	}
	meals[index].Completed = !meals[index].Completed
	a.save(ctx, KeyWeekPlan, a.weekPlan)
	if meals[index].Completed {
		a.notify(models.ToastSuccess, "Meal Logged! Stats Updated.")
		a.logActivityLocked(ctx, ActivityMeal, "Ate "+meals[index].Title)
	}
	return meals[index].Completed, nil
}

// SaveMealNote stores a free-text note on a meal.
func (a *App) SaveMealNote(ctx context.Context, date string, index int, note string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.dayIndexLocked(date)
	if d < 0 {
		return fmt.Errorf("%s: %w", date, ErrNoPlanForDate)
	}
	meals := a.weekPlan[d].Meals
	if index < 0 || index >= len(meals) {
		return fmt.Errorf("meal %d: %w", index, ErrIndexOutOfRange)
	}
	meals[index].Notes = note
	a.save(ctx, KeyWeekPlan, a.weekPlan)
	a.notify(models.ToastSuccess, "Note Saved 📝")
	return nil
}

// AddCustomMeal appends a user-entered meal to the plan day for date and adds
// its macros to the day totals.
func (a *App) AddCustomMeal(ctx context.Context, date string, meal models.Meal) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.dayIndexLocked(date)
	if d < 0 {
		a.notify(models.ToastError, "No plan exists for this date.")
		return fmt.Errorf("%s: %w", date, ErrNoPlanForDate)
	}
	if meal.Type == "" {
		meal.Type = DefaultCustomMealType
	}
	meal.Completed = false
	meal.Benefit = CustomMealBenefit

	day := &a.weekPlan[d]
	day.Meals = append(day.Meals, meal)
	day.TotalMacros = AddMealToTotals(day.TotalMacros, meal)
	a.save(ctx, KeyWeekPlan, a.weekPlan)
	a.notify(models.ToastSuccess, "Meal Added")
	slog.Debug("App AddCustomMeal succeeded", "date", date, "title", meal.Title)
	return nil
}

// ToggleExercise flips an exercise's completion and reports the new value.
func (a *App) ToggleExercise(ctx context.Context, date string, index int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w := a.workoutIndexLocked(date)
	if w < 0 {
		return false, fmt.Errorf("%s: %w", date, ErrNoPlanForDate)
	}
	exercises := a.workoutPlan[w].Exercises
	if index < 0 || index >= len(exercises) {
		return false, fmt.Errorf("exercise %d: %w", index, ErrIndexOutOfRange)
	}
	ex := &exercises[index]
	ex.Completed = !ex.Completed
	a.save(ctx, KeyWorkoutPlan, a.workoutPlan)
	if ex.Completed {
		name := ex.Name
		if name == "" {
			name = "exercise"
		}
		a.notify(models.ToastSuccess, "Exercise Complete! 💪")
		a.logActivityLocked(ctx, ActivityExercise, "Did "+name)
	}
	return ex.Completed, nil
}

// LogSet records the weight, reps and notes performed for an exercise.
func (a *App) LogSet(ctx context.Context, date string, index int, weight, reps, notes string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	w := a.workoutIndexLocked(date)
	if w < 0 {
		return fmt.Errorf("%s: %w", date, ErrNoPlanForDate)
	}
	exercises := a.workoutPlan[w].Exercises
	if index < 0 || index >= len(exercises) {
		return fmt.Errorf("exercise %d: %w", index, ErrIndexOutOfRange)
	}
	exercises[index].Weight = weight
	exercises[index].PerformedReps = reps
	exercises[index].Notes = notes
	a.save(ctx, KeyWorkoutPlan, a.workoutPlan)
	return nil
}

// FinishWorkout copies every logged set of the day into the workout history and
// returns how many were recorded.
func (a *App) FinishWorkout(ctx context.Context, date string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w := a.workoutIndexLocked(date)
	if w < 0 {
		return 0, fmt.Errorf("%s: %w", date, ErrNoPlanForDate)
	}
	today := a.today()
	logged := 0
	for _, ex := range a.workoutPlan[w].Exercises {
		if ex.Weight == "" && ex.PerformedReps == "" {
			continue
		}
		name := ex.Name
		if name == "" {
			name = "Unknown Exercise"
		}
		a.workoutHistory[name] = models.SetLog{Weight: ex.Weight, Reps: ex.PerformedReps, Date: today, Notes: ex.Notes}
		logged++
	}
	a.save(ctx, KeyWorkoutHistory, a.workoutHistory)
	if logged > 0 {
		a.notify(models.ToastSuccess, fmt.Sprintf("Workout Saved! %d Logs Updated.", logged))
	} else {
		a.notify(models.ToastSuccess, "Workout Completed!")
	}
	a.updateAchievementLocked(ctx, models.AchievementWorkoutWarrior, 1)
	return logged, nil
}

// ExerciseHistory describes the last logged set for an exercise, or "" if none.
func (a *App) ExerciseHistory(name string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.workoutHistory[name]
	if !ok {
		return ""
	}
	weight, reps := h.Weight, h.Reps
	if weight == "" {
		weight = "-"
	}
	if reps == "" {
		reps = "-"
	}
	date := h.Date
	if len(date) > 5 {
		date = date[5:]
	}
	return fmt.Sprintf("Last: %skg x %s (%s)", weight, reps, date)
}

// SaveJournal stores the entry under the selected date.
func (a *App) SaveJournal(ctx context.Context, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.journalEntries[a.selectedDate] = text
	a.save(ctx, KeyJournalEntries, a.journalEntries)
	a.notify(models.ToastSuccess, "Journal Saved ✍️")
	a.logActivityLocked(ctx, ActivityJournal, "Wrote in journal")
	a.updateAchievementLocked(ctx, models.AchievementJournalKeeper, 1)
}

// SetMood records the mood for the selected date.
func (a *App) SetMood(ctx context.Context, mood string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.moodHistory[a.selectedDate] = mood
	a.save(ctx, KeyMoodHistory, a.moodHistory)
	a.notify(models.ToastSuccess, "Mood Recorded: "+mood)
	a.logActivityLocked(ctx, ActivityMood, "Mood: "+mood)
}
