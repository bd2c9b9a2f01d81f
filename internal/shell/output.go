package shell

import (
	"fmt"
	"io"
	"strings"

	"github.com/BTreeMap/BioFlow/internal/catalog"
	"github.com/BTreeMap/BioFlow/internal/flow"
	"github.com/BTreeMap/BioFlow/internal/models"
	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Daily macro targets used for the progress bars.
const (
	TargetCalories = 2200
	TargetProtein  = 150
	TargetCarbs    = 200
	TargetFats     = 70
)

// WriteData writes v as indented JSON or YAML.
func WriteData(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case FormatYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Question renders a consultation question with numbered options.
func Question(w io.Writer, snap flow.ConsultationSnapshot) {
	if !snap.Active || snap.Current == nil {
		fmt.Fprintln(w, "No consultation in progress.")
		return
	}
	q := snap.Current
	bold := color.New(color.FgCyan, color.Bold)
	bold.Fprintf(w, "[%d/%d] %s\n", snap.Step+1, snap.Total, q.Title)
	if q.Desc != "" {
		fmt.Fprintf(w, "   %s\n", q.Desc)
	}
	if q.Value != "" {
		fmt.Fprintf(w, "   Value: %s\n", color.YellowString(q.Value))
	}
	for i, opt := range q.Options {
		fmt.Fprintf(w, "   %d. %s %s\n", i+1, opt.Icon, opt.Text)
	}
}

// MacroBar renders a ten-cell progress bar with the percent of target.
func MacroBar(label string, value models.FlexString, target int) string {
	pct := flow.MacroPercent(value, target)
	filled := pct / 10
	return fmt.Sprintf("%-8s %s%s %3d%%", label, strings.Repeat("█", filled), strings.Repeat("░", 10-filled), pct)
}

// DayPlan renders one plan day with its meals and macro bars.
func DayPlan(w io.Writer, day models.DayPlan) {
	color.New(color.FgGreen, color.Bold).Fprintf(w, "%s %s\n", day.Date, day.Day)
	for i, m := range day.Meals {
		mark := "○"
		if m.Completed {
			mark = "●"
		}
		fmt.Fprintf(w, "  %d. %s %s [%s] %s (%s kcal)\n", i+1, mark, MealIcon(m.Type), m.Type, m.Title, m.Calories)
		if m.Notes != "" {
			fmt.Fprintf(w, "     %s\n", color.HiBlackString(m.Notes))
		}
	}
	t := day.TotalMacros
	fmt.Fprintln(w, "  "+MacroBar("Calories", t.Calories, TargetCalories))
	fmt.Fprintln(w, "  "+MacroBar("Protein", t.Protein, TargetProtein))
	fmt.Fprintln(w, "  "+MacroBar("Carbs", t.Carbs, TargetCarbs))
	fmt.Fprintln(w, "  "+MacroBar("Fats", t.Fats, TargetFats))
}

// WorkoutDay renders one workout day.
func WorkoutDay(w io.Writer, day models.WorkoutDay) {
	color.New(color.FgMagenta, color.Bold).Fprintf(w, "%s %s  %s\n", day.Date, day.Day, day.Focus)
	for i, ex := range day.Exercises {
		mark := "○"
		if ex.Completed {
			mark = "●"
		}
		line := fmt.Sprintf("  %d. %s %s", i+1, mark, ex.Name)
		if ex.Sets != "" || ex.Reps != "" {
			line += fmt.Sprintf(" %sx%s", ex.Sets, ex.Reps)
		}
		if ex.Rest != "" {
			line += " rest " + ex.Rest
		}
		fmt.Fprintln(w, line)
	}
}

// Dashboard renders the headline state: profile, streak and trackers.
func Dashboard(w io.Writer, s flow.State) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "BioFlow · %s\n", s.UserName)
	fmt.Fprintf(w, "Health score: %d   Streak: %d day(s)\n", s.HealthScore, s.UserStreak)
	b := s.BioMetrics
	fmt.Fprintf(w, "Bio age: %.1f (chronological %d)   HRV: %d ms   RHR: %d bpm   Sleep: %d\n",
		b.BiologicalAge, b.ChronologicalAge, b.HRV, b.RHR, b.SleepScore)
	for _, cat := range models.BiomarkerCategories {
		markers := s.BiomarkerGroups[cat]
		if len(markers) == 0 {
			continue
		}
		names := make([]string, 0, len(markers))
		for _, m := range markers {
			names = append(names, strings.TrimSpace(fmt.Sprintf("%s %s %s", m.Name, m.Value, m.Unit)))
		}
		fmt.Fprintf(w, "%s: %s\n", cat, strings.Join(names, ", "))
	}
	fmt.Fprintf(w, "Water: %d/%d", s.WaterIntake, s.WaterGoal)
	if s.FastingElapsed != "" {
		fmt.Fprintf(w, "   Fasting: %s", s.FastingElapsed)
	}
	fmt.Fprintln(w)
	if s.RestActive {
		fmt.Fprintf(w, "Rest: %s\n", flow.FormatCountdown(s.RestRemaining))
	}
	if s.MeditationActive {
		fmt.Fprintf(w, "Meditation: %s\n", flow.FormatCountdown(s.MeditationRemaining))
	}
	for _, a := range s.ActivityLog {
		fmt.Fprintf(w, "  %s %s\n", color.HiBlackString(a.Time.Format("15:04")), a.Detail)
	}
}

// ToolGroups renders the tool list under category headings.
func ToolGroups(w io.Writer, groups []catalog.ToolGroup) {
	for _, g := range groups {
		color.New(color.FgCyan, color.Bold).Fprintln(w, g.Category)
		for _, t := range g.Tools {
			inputs := make([]string, 0, len(t.Inputs))
			for _, in := range t.Inputs {
				inputs = append(inputs, in.Key+"=")
			}
			fmt.Fprintf(w, "  %s %-24s %s  %s\n", ToolIcon(t.ID), t.ID, t.Name, strings.Join(inputs, " "))
		}
	}
}

// Achievements renders the badge list.
func Achievements(w io.Writer, achievements map[string]models.Achievement) {
	for _, id := range []string{
		models.AchievementWorkoutWarrior,
		models.AchievementHydrationStreak,
		models.AchievementMindfulMaster,
		models.AchievementJournalKeeper,
	} {
		a, ok := achievements[id]
		if !ok {
			continue
		}
		status := fmt.Sprintf("%d/%d", a.Progress, a.Target)
		if a.Unlocked {
			status = color.GreenString("unlocked")
		}
		fmt.Fprintf(w, "%s %-16s %s\n", a.Icon, a.Name, status)
	}
}
