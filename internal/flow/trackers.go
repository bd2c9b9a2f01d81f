package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/BioFlow/internal/models"
	"github.com/google/uuid"
)

// Activity types recorded in the activity log.
const (
	ActivityMeal       = "meal"
	ActivityExercise   = "exercise"
	ActivityWater      = "water"
	ActivityHydration  = "hydration"
	ActivityJournal    = "journal"
	ActivityMood       = "mood"
	ActivityMeditation = "meditation"
	ActivityPlan       = "plan"
)

// NextStreak returns the streak after a visit on today given the last visit date.
// A repeat visit on the same day keeps the streak, a visit on the following day
// extends it and anything else restarts it at one.
func NextStreak(streak int, lastDate, today string) int {
	if lastDate == today {
		return streak
	}
	t, err := time.Parse(models.DateLayout, today)
	if err == nil && lastDate == t.AddDate(0, 0, -1).Format(models.DateLayout) {
		return streak + 1
	}
	return 1
}

// FormatElapsed renders a duration as "<h>h <m>m".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", h, m)
}

// FormatCountdown renders seconds as "m:ss".
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// DailyRollover updates the visit streak and resets the water counter once per
// calendar day. It is a no-op on a day already rolled over.
func (a *App) DailyRollover(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rolloverLocked(ctx)
}

func (a *App) rolloverLocked(ctx context.Context) {
	today := a.today()
	if a.lastLoginDate == today {
		return
	}
	a.userStreak = NextStreak(a.userStreak, a.lastLoginDate, today)
	a.lastLoginDate = today
	a.selectedDate = today
	a.save(ctx, KeyUserStreak, a.userStreak)
	a.save(ctx, KeyLastLoginDate, a.lastLoginDate)
	if a.waterIntake != 0 {
		a.waterIntake = 0
		a.save(ctx, KeyWaterIntake, a.waterIntake)
	}
	slog.Info("App daily rollover", "date", today, "streak", a.userStreak)
}

// logActivityLocked prepends an entry and trims the log.
func (a *App) logActivityLocked(ctx context.Context, typ, detail string) {
	entry := models.ActivityEntry{
		ID:     uuid.NewString(),
		Type:   typ,
		Detail: detail,
		Time:   a.clock.Now(),
	}
	a.activityLog = append([]models.ActivityEntry{entry}, a.activityLog...)
	if len(a.activityLog) > MaxActivityEntries {
		a.activityLog = a.activityLog[:MaxActivityEntries]
	}
	a.save(ctx, KeyActivityLog, a.activityLog)
}

// updateAchievementLocked adds progress to a locked badge and unlocks it at its
// target.
func (a *App) updateAchievementLocked(ctx context.Context, id string, amount int) {
	ach, ok := a.achievements[id]
	if !ok || ach.Unlocked {
		return
	}
	ach.Progress += amount
	if ach.Progress >= ach.Target {
		ach.Unlocked = true
		a.notify(models.ToastSuccess, fmt.Sprintf("Achievement Unlocked: %s! 🏆", ach.Name))
		slog.Info("App achievement unlocked", "id", id)
	}
	a.achievements[id] = ach
	a.save(ctx, KeyAchievements, a.achievements)
}

// AddWater records one glass up to the daily goal and returns the new count.
func (a *App) AddWater(ctx context.Context) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.waterIntake >= WaterGoal {
		return a.waterIntake
	}
	a.waterIntake++
	a.save(ctx, KeyWaterIntake, a.waterIntake)
	a.waterHistory[a.today()] = a.waterIntake
	a.save(ctx, KeyWaterHistory, a.waterHistory)
	a.logActivityLocked(ctx, ActivityWater, "Drank water")

	if a.waterIntake == WaterGoal {
		a.notify(models.ToastSuccess, "Hydration Goal Met! 💧")
		a.updateAchievementLocked(ctx, models.AchievementHydrationStreak, 1)
		a.logActivityLocked(ctx, ActivityHydration, "Hit hydration goal!")
	}
	return a.waterIntake
}

// ResetWater sets today's water count back to zero.
func (a *App) ResetWater(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.waterIntake = 0
	a.save(ctx, KeyWaterIntake, 0)
}

// ToggleFasting starts or ends a fast and reports whether one is now running.
func (a *App) ToggleFasting(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fastingStart > 0 {
		a.fastingStart = 0
		a.fastingElapsed = ""
		a.timers.Cancel(TimerFasting)
		if err := a.state.Remove(ctx, KeyFastingStart); err != nil {
			slog.Warn("App failed to clear fasting start", "error", err)
		}
		a.notify(models.ToastSuccess, "Fasting Ended")
		return false
	}
	a.fastingStart = a.clock.Now().UnixMilli()
	a.save(ctx, KeyFastingStart, a.fastingStart)
	a.startFastingTickerLocked()
	a.notify(models.ToastSuccess, "Fasting Started ⏳")
	return true
}

// startFastingTickerLocked refreshes the elapsed text now and every minute.
// Arming the named timer replaces any ticker already running.
func (a *App) startFastingTickerLocked() {
	a.updateFastingLocked()
	a.timers.Every(TimerFasting, FastingTickInterval, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.updateFastingLocked()
	})
}

func (a *App) updateFastingLocked() {
	if a.fastingStart == 0 {
		return
	}
	elapsed := a.clock.Now().Sub(time.UnixMilli(a.fastingStart))
	a.fastingElapsed = FormatElapsed(elapsed)
}

// StartRest begins a rest countdown of the given seconds, replacing any running one.
func (a *App) StartRest(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("rest duration must be positive, got %d", seconds)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.restRemaining = seconds
	a.restTotal = seconds
	a.restActive = true
	a.timers.Every(TimerRest, CountdownInterval, a.tickRest)
	return nil
}

func (a *App) tickRest() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.restActive {
		return
	}
	a.restRemaining--
	if a.restRemaining <= 0 {
		a.restRemaining = 0
		a.restActive = false
		a.timers.Cancel(TimerRest)
		a.notify(models.ToastSuccess, "Rest Complete! Go!")
	}
}

// StopRest cancels the rest countdown.
func (a *App) StopRest() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.restActive = false
	a.timers.Cancel(TimerRest)
}

// StartMeditation begins a meditation countdown. minutes <= 0 uses the last
// duration. It does nothing while a session is running.
func (a *App) StartMeditation(minutes int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.meditationActive {
		return false
	}
	if minutes > 0 {
		a.meditationMinutes = minutes
	}
	a.meditationActive = true
	a.meditationLeft = a.meditationMinutes * 60
	a.timers.Every(TimerMeditation, CountdownInterval, a.tickMeditation)
	return true
}

func (a *App) tickMeditation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.meditationActive {
		return
	}
	a.meditationLeft--
	if a.meditationLeft > 0 {
		return
	}
	a.meditationLeft = 0
	a.meditationActive = false
	a.timers.Cancel(TimerMeditation)
	ctx := context.Background()
	a.notify(models.ToastSuccess, "Meditation Complete 🧘")
	a.logActivityLocked(ctx, ActivityMeditation, fmt.Sprintf("Meditated %dm", a.meditationMinutes))
	a.updateAchievementLocked(ctx, models.AchievementMindfulMaster, a.meditationMinutes)
}

// StopMeditation cancels the meditation countdown without credit.
func (a *App) StopMeditation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.meditationActive = false
	a.timers.Cancel(TimerMeditation)
}
