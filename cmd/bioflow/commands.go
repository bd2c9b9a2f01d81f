package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/BioFlow/internal/api"
	"github.com/BTreeMap/BioFlow/internal/flow"
	"github.com/BTreeMap/BioFlow/internal/models"
	"github.com/BTreeMap/BioFlow/internal/scheduler"
	"github.com/BTreeMap/BioFlow/internal/shell"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// DefaultStrategyName is sent when a plan is requested without a strategy.
const DefaultStrategyName = "Personalized Protocol"

type action func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error

// withRuntime opens the runtime around fn and always closes it.
func withRuntime(cfg *Config, fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, *cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(ctx, rt, cmd, args)
	}
}

// emit writes v in the configured machine format, or calls human.
func emit(cmd *cobra.Command, cfg *Config, v any, human func(w io.Writer)) error {
	if cfg.Output == shell.FormatHuman {
		human(cmd.OutOrStdout())
		return nil
	}
	return shell.WriteData(cmd.OutOrStdout(), cfg.Output, v)
}

// selectDate moves the selected date when date is set and returns the selection.
func selectDate(rt *runtime, date string) (string, error) {
	if date != "" {
		if err := rt.app.SelectDate(date); err != nil {
			return "", err
		}
	}
	return rt.app.State().SelectedDate, nil
}

// parseKeyValues turns k=v arguments into a map.
func parseKeyValues(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func newRootCmd(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "bioflow",
		Short:         "Personal health planning from your lab results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cfg.Output {
			case shell.FormatHuman, shell.FormatJSON, shell.FormatYAML:
			default:
				return fmt.Errorf("unsupported output format %q", cfg.Output)
			}
			initializeLogger(parseLogLevel(cfg.LogLevel))
			if cfg.NoColor {
				color.NoColor = true
			}
			return nil
		},
		RunE: withRuntime(cfg, runStatus(cfg)),
	}

	f := root.PersistentFlags()
	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for BioFlow data (overrides $BIOFLOW_STATE_DIR)")
	f.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "store DSN: SQLite path, postgres:// or redis:// URL (overrides $BIOFLOW_DB_DSN or $DATABASE_URL)")
	f.StringVar(&cfg.Profile, "profile", cfg.Profile, "profile namespace for stored data (overrides $BIOFLOW_PROFILE)")
	f.StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "plan service base URL (overrides $BIOFLOW_SERVICE_URL)")
	f.StringVar(&cfg.OpenAIKey, "openai-api-key", cfg.OpenAIKey, "OpenAI API key for the offline assistant (overrides $OPENAI_API_KEY)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error (overrides $BIOFLOW_LOG_LEVEL)")
	f.StringVarP(&cfg.Output, "output", "o", cfg.Output, "output format: human, json, yaml")
	f.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "disable colored output (overrides $BIOFLOW_NO_COLOR)")

	root.AddCommand(
		newStatusCmd(cfg),
		newUploadCmd(cfg),
		newDemoCmd(cfg),
		newConsultCmd(cfg),
		newPlanCmd(cfg),
		newMealsCmd(cfg),
		newFitnessCmd(cfg),
		newRecipeCmd(cfg),
		newShoppingCmd(cfg),
		newChatCmd(cfg),
		newDefineCmd(cfg),
		newToolCmd(cfg),
		newWaterCmd(cfg),
		newFastCmd(cfg),
		newRestCmd(cfg),
		newMeditateCmd(cfg),
		newJournalCmd(cfg),
		newMoodCmd(cfg),
		newSettingsCmd(cfg),
		newExportCmd(cfg),
		newResetCmd(cfg),
		newServeCmd(cfg),
		newVersionCmd(),
	)
	return root
}

func runStatus(cfg *Config) action {
	return func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
		st := rt.app.State()
		return emit(cmd, cfg, st, func(w io.Writer) {
			shell.Dashboard(w, st)
			fmt.Fprintln(w)
			shell.Achievements(w, st.Achievements)
			fmt.Fprintf(w, "\nTip: %s\n", rt.app.Catalog().DailyTip(rt.app.Now()))
		})
	}
}

func newStatusCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the dashboard",
		Args:  cobra.NoArgs,
		RunE:  withRuntime(cfg, runStatus(cfg)),
	}
}

// runConsultation asks questions until the consultation ends or input runs out.
// Scripted answers are used before in is read.
func runConsultation(ctx context.Context, rt *runtime, in io.Reader, out io.Writer, scripted []string) error {
	scanner := bufio.NewScanner(in)
	next := func() (string, bool) {
		if len(scripted) > 0 {
			a := scripted[0]
			scripted = scripted[1:]
			return a, true
		}
		if !scanner.Scan() {
			return "", false
		}
		return scanner.Text(), true
	}

	snap := rt.app.Consultation()
	for snap.Active {
		shell.Question(out, snap)
		fmt.Fprint(out, "> ")
		line, ok := next()
		if !ok {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Consultation paused. Run `bioflow consult` to start over.")
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var err error
		if n, convErr := strconv.Atoi(line); convErr == nil {
			snap, err = rt.app.Answer(ctx, n-1)
		} else {
			snap, err = rt.app.AnswerText(ctx, line)
		}
		if errors.Is(err, flow.ErrInvalidOption) {
			fmt.Fprintf(out, "Invalid choice: %v\n", err)
			snap = rt.app.Consultation()
			continue
		}
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "Consultation complete.")
	if day, ok := rt.app.MealsForDate(rt.app.State().SelectedDate); ok {
		shell.DayPlan(out, day)
	}
	return nil
}

func consultFlags(cmd *cobra.Command, answers *[]string, skip *bool) {
	cmd.Flags().StringArrayVar(answers, "answer", nil, "answer the next question by option number or text (repeatable)")
	if skip != nil {
		cmd.Flags().BoolVar(skip, "no-consult", false, "load the context without starting the consultation")
	}
}

func newUploadCmd(cfg *Config) *cobra.Command {
	var answers []string
	var skip bool
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a lab report PDF and start the consultation",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open lab report: %w", err)
			}
			defer f.Close()
			if err := rt.app.UploadLabReport(ctx, filepath.Base(args[0]), f); err != nil {
				return err
			}
			if skip {
				shell.Question(cmd.OutOrStdout(), rt.app.Consultation())
				return nil
			}
			return runConsultation(ctx, rt, cmd.InOrStdin(), cmd.OutOrStdout(), answers)
		}),
	}
	consultFlags(cmd, &answers, &skip)
	return cmd
}

func newDemoCmd(cfg *Config) *cobra.Command {
	var answers []string
	var skip bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Load the sample health context and start the consultation",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if err := rt.app.LoadDemo(ctx); err != nil {
				return err
			}
			if skip {
				shell.Question(cmd.OutOrStdout(), rt.app.Consultation())
				return nil
			}
			return runConsultation(ctx, rt, cmd.InOrStdin(), cmd.OutOrStdout(), answers)
		}),
	}
	consultFlags(cmd, &answers, &skip)
	return cmd
}

func newConsultCmd(cfg *Config) *cobra.Command {
	var answers []string
	cmd := &cobra.Command{
		Use:   "consult",
		Short: "Answer the consultation for the loaded health context",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if !rt.app.Consultation().Active {
				if err := rt.app.ResumeConsultation(ctx); err != nil {
					if errors.Is(err, flow.ErrNoContext) {
						return fmt.Errorf("%w: run `bioflow upload FILE` or `bioflow demo` first", err)
					}
					return err
				}
			}
			return runConsultation(ctx, rt, cmd.InOrStdin(), cmd.OutOrStdout(), answers)
		}),
	}
	consultFlags(cmd, &answers, nil)
	return cmd
}

func newPlanCmd(cfg *Config) *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate the weekly meal and workout plan",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if err := rt.app.GeneratePlan(ctx, flow.PlanRequest{StrategyName: strategy}); err != nil {
				return err
			}
			st := rt.app.State()
			return emit(cmd, cfg, map[string]any{"week_plan": st.WeekPlan, "workout_plan": st.WorkoutPlan}, func(w io.Writer) {
				if day, ok := rt.app.MealsForDate(st.SelectedDate); ok {
					shell.DayPlan(w, day)
				}
				if day, ok := rt.app.WorkoutForDate(st.SelectedDate); ok {
					shell.WorkoutDay(w, day)
				}
			})
		}),
	}
	cmd.Flags().StringVar(&strategy, "strategy", DefaultStrategyName, "strategy name sent to the plan service")
	return cmd
}

func strategiesOutput(cmd *cobra.Command, cfg *Config, list []models.Strategy) error {
	return emit(cmd, cfg, list, func(w io.Writer) {
		for _, s := range list {
			fmt.Fprintf(w, "%s  %s\n", s.ID, s.DisplayName())
			if s.Desc != "" {
				fmt.Fprintf(w, "    %s\n", s.Desc)
			}
			if s.Pros != "" {
				fmt.Fprintf(w, "    + %s\n", s.Pros)
			}
		}
	})
}

func newMealsCmd(cfg *Config) *cobra.Command {
	var date, note, title, mealType string
	var toggle, noteIndex int
	var calories, protein, carbs, fats string
	cmd := &cobra.Command{
		Use:   "meals",
		Short: "Show and log the meals of a day",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			day, err := selectDate(rt, date)
			if err != nil {
				return err
			}
			if toggle > 0 {
				if _, err := rt.app.ToggleMeal(ctx, day, toggle-1); err != nil {
					return err
				}
			}
			if noteIndex > 0 {
				if err := rt.app.SaveMealNote(ctx, day, noteIndex-1, note); err != nil {
					return err
				}
			}
			if title != "" {
				meal := models.Meal{
					Title:    title,
					Type:     mealType,
					Calories: models.FlexString(calories),
					Protein:  models.FlexString(protein),
					Carbs:    models.FlexString(carbs),
					Fats:     models.FlexString(fats),
				}
				if err := rt.app.AddCustomMeal(ctx, day, meal); err != nil {
					return err
				}
			}
			plan, ok := rt.app.MealsForDate(day)
			if !ok {
				return fmt.Errorf("%s: %w", day, flow.ErrNoPlanForDate)
			}
			return emit(cmd, cfg, plan, func(w io.Writer) { shell.DayPlan(w, plan) })
		}),
	}
	fl := cmd.Flags()
	fl.StringVar(&date, "date", "", "day to show (YYYY-MM-DD, default today)")
	fl.IntVar(&toggle, "toggle", 0, "toggle completion of meal N")
	fl.IntVar(&noteIndex, "meal", 0, "meal N to attach --note to")
	fl.StringVar(&note, "note", "", "note for the meal selected with --meal")
	fl.StringVar(&title, "add", "", "add a custom meal with this title")
	fl.StringVar(&mealType, "type", "Snack", "type of the custom meal")
	fl.StringVar(&calories, "calories", "0", "calories of the custom meal")
	fl.StringVar(&protein, "protein", "0g", "protein of the custom meal")
	fl.StringVar(&carbs, "carbs", "0g", "carbs of the custom meal")
	fl.StringVar(&fats, "fats", "0g", "fats of the custom meal")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "strategies",
			Short: "Propose meal strategies",
			Args:  cobra.NoArgs,
			RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
				list, err := rt.app.ProposeMealStrategies(ctx)
				if err != nil {
					return err
				}
				return strategiesOutput(cmd, cfg, list)
			}),
		},
		&cobra.Command{
			Use:   "select ID",
			Short: "Generate the week for a proposed meal strategy",
			Args:  cobra.ExactArgs(1),
			RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
				if len(rt.app.State().MealStrategies) == 0 {
					if _, err := rt.app.ProposeMealStrategies(ctx); err != nil {
						return err
					}
				}
				if err := rt.app.SelectMealStrategy(ctx, args[0]); err != nil {
					return err
				}
				st := rt.app.State()
				return emit(cmd, cfg, st.WeekPlan, func(w io.Writer) {
					if day, ok := rt.app.MealsForDate(st.SelectedDate); ok {
						shell.DayPlan(w, day)
					}
				})
			}),
		},
	)
	return cmd
}

func newFitnessCmd(cfg *Config) *cobra.Command {
	var date, weight, reps, notes string
	var done, logIndex int
	var finish bool
	cmd := &cobra.Command{
		Use:   "fitness",
		Short: "Show and log the workout of a day",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			day, err := selectDate(rt, date)
			if err != nil {
				return err
			}
			if done > 0 {
				if _, err := rt.app.ToggleExercise(ctx, day, done-1); err != nil {
					return err
				}
			}
			if logIndex > 0 {
				if err := rt.app.LogSet(ctx, day, logIndex-1, weight, reps, notes); err != nil {
					return err
				}
			}
			if finish {
				n, err := rt.app.FinishWorkout(ctx, day)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workout finished: %d exercise(s) completed.\n", n)
			}
			workout, ok := rt.app.WorkoutForDate(day)
			if !ok {
				return fmt.Errorf("%s: %w", day, flow.ErrNoPlanForDate)
			}
			return emit(cmd, cfg, workout, func(w io.Writer) {
				shell.WorkoutDay(w, workout)
				for _, ex := range workout.Exercises {
					if last := rt.app.ExerciseHistory(ex.Name); last != "" {
						fmt.Fprintf(w, "  %s last: %s\n", ex.Name, last)
					}
				}
			})
		}),
	}
	fl := cmd.Flags()
	fl.StringVar(&date, "date", "", "day to show (YYYY-MM-DD, default today)")
	fl.IntVar(&done, "done", 0, "toggle completion of exercise N")
	fl.IntVar(&logIndex, "log", 0, "log a set for exercise N")
	fl.StringVar(&weight, "weight", "", "weight of the logged set")
	fl.StringVar(&reps, "reps", "", "reps of the logged set")
	fl.StringVar(&notes, "notes", "", "notes for the logged set")
	fl.BoolVar(&finish, "finish", false, "finish the day's workout")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "strategies",
			Short: "Propose fitness strategies from your lifestyle answers",
			Args:  cobra.NoArgs,
			RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
				list, err := rt.app.ProposeFitnessStrategies(ctx)
				if err != nil {
					return err
				}
				return strategiesOutput(cmd, cfg, list)
			}),
		},
		&cobra.Command{
			Use:   "select ID",
			Short: "Regenerate the workout plan for a proposed fitness strategy",
			Args:  cobra.ExactArgs(1),
			RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
				if len(rt.app.State().FitnessStrategies) == 0 {
					if _, err := rt.app.ProposeFitnessStrategies(ctx); err != nil {
						return err
					}
				}
				if err := rt.app.SelectFitnessStrategy(ctx, args[0]); err != nil {
					return err
				}
				st := rt.app.State()
				return emit(cmd, cfg, st.WorkoutPlan, func(w io.Writer) {
					if day, ok := rt.app.WorkoutForDate(st.SelectedDate); ok {
						shell.WorkoutDay(w, day)
					}
				})
			}),
		},
	)
	return cmd
}

func newRecipeCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "recipe TITLE",
		Short: "Show the recipe for a meal",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			recipe, err := rt.app.Recipe(ctx, title)
			if err != nil {
				return err
			}
			return emit(cmd, cfg, recipe, func(w io.Writer) {
				fmt.Fprintln(w, title)
				for i, step := range recipe.Steps {
					fmt.Fprintf(w, "  %d. %s\n", i+1, step)
				}
				keys := make([]string, 0, len(recipe.Macros))
				for k := range recipe.Macros {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(w, "  %s: %s\n", k, recipe.Macros[k])
				}
			})
		}),
	}
}

func newShoppingCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "shopping",
		Short: "Show the shopping list for the current plan",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			list, err := rt.app.ShoppingList(ctx)
			if err != nil {
				return err
			}
			return emit(cmd, cfg, list, func(w io.Writer) { fmt.Fprint(w, shell.ShoppingListText(list)) })
		}),
	}
}

func newChatCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "chat MESSAGE",
		Short: "Ask the health assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			human := cfg.Output == shell.FormatHuman
			var onChunk func(string)
			if human {
				onChunk = func(chunk string) { fmt.Fprint(out, chunk) }
			}
			reply, err := rt.app.Chat(ctx, strings.Join(args, " "), onChunk)
			if err != nil {
				return err
			}
			if human {
				fmt.Fprintln(out)
				return nil
			}
			return shell.WriteData(out, cfg.Output, map[string]string{"reply": reply})
		}),
	}
}

func newDefineCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "define TERM",
		Short: "Explain a medical term",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			term := strings.Join(args, " ")
			def, err := rt.app.DefineNow(ctx, term)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), flow.DefinitionUnavailable)
				return err
			}
			return emit(cmd, cfg, map[string]string{"term": term, "definition": def}, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s\n", term, def)
			})
		}),
	}
}

func newToolCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tool [ID key=value...]",
		Short: "Run a health tool, or list the tools",
		Args:  cobra.ArbitraryArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				groups := rt.app.Catalog().GroupedTools()
				return emit(cmd, cfg, groups, func(w io.Writer) { shell.ToolGroups(w, groups) })
			}
			inputs, err := parseKeyValues(args[1:])
			if err != nil {
				return err
			}
			result, err := rt.app.RunTool(ctx, args[0], inputs)
			if err != nil {
				return err
			}
			return emit(cmd, cfg, result, func(w io.Writer) { fmt.Fprint(w, shell.FormatToolResult(result)) })
		}),
	}
}

func newWaterCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:       "water [add|reset]",
		Short:     "Log a glass of water",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"add", "reset"},
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if len(args) == 1 && args[0] == "reset" {
				rt.app.ResetWater(ctx)
			} else {
				rt.app.AddWater(ctx)
			}
			st := rt.app.State()
			return emit(cmd, cfg, map[string]int{"water_intake": st.WaterIntake, "water_goal": st.WaterGoal}, func(w io.Writer) {
				fmt.Fprintf(w, "Water: %d/%d\n", st.WaterIntake, st.WaterGoal)
			})
		}),
	}
}

func newFastCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "fast",
		Short: "Start or end a fast",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			active := rt.app.ToggleFasting(ctx)
			elapsed := rt.app.State().FastingElapsed
			return emit(cmd, cfg, map[string]any{"active": active, "elapsed": elapsed}, func(w io.Writer) {
				if active {
					fmt.Fprintf(w, "Fasting: %s\n", elapsed)
				} else {
					fmt.Fprintln(w, "Fast ended.")
				}
			})
		}),
	}
}

// waitCountdown prints the remaining time each second until inactive. Interrupting
// calls stop.
func waitCountdown(ctx context.Context, out io.Writer, label string, remaining func() (int, bool), stop func()) error {
	ticker := time.NewTicker(flow.CountdownInterval)
	defer ticker.Stop()
	for {
		left, active := remaining()
		if !active {
			fmt.Fprintf(out, "\r%s: done \n", label)
			return nil
		}
		fmt.Fprintf(out, "\r%s: %s ", label, flow.FormatCountdown(left))
		select {
		case <-ctx.Done():
			stop()
			fmt.Fprintln(out)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newRestCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rest SECONDS",
		Short: "Run a rest countdown between sets",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			seconds, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid rest duration %q: %w", args[0], err)
			}
			if err := rt.app.StartRest(seconds); err != nil {
				return err
			}
			return waitCountdown(ctx, cmd.OutOrStdout(), "Rest", func() (int, bool) {
				st := rt.app.State()
				return st.RestRemaining, st.RestActive
			}, rt.app.StopRest)
		}),
	}
}

func newMeditateCmd(cfg *Config) *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "meditate",
		Short: "Run a meditation timer",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if !rt.app.StartMeditation(minutes) {
				return errors.New("a meditation session is already running")
			}
			return waitCountdown(ctx, cmd.OutOrStdout(), "Meditation", func() (int, bool) {
				st := rt.app.State()
				return st.MeditationRemaining, st.MeditationActive
			}, rt.app.StopMeditation)
		}),
	}
	cmd.Flags().IntVar(&minutes, "minutes", flow.DefaultMeditationMinutes, "session length in minutes")
	return cmd
}

func newJournalCmd(cfg *Config) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "journal [save|analyze] TEXT",
		Short: "Write a journal entry, optionally with AI analysis",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			mode := "save"
			if args[0] == "save" || args[0] == "analyze" {
				mode, args = args[0], args[1:]
			}
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return flow.ErrEmptyInput
			}
			if _, err := selectDate(rt, date); err != nil {
				return err
			}
			rt.app.SaveJournal(ctx, text)
			if mode == "save" {
				fmt.Fprintln(cmd.OutOrStdout(), "Journal Saved")
				return nil
			}
			analysis, err := rt.app.AnalyzeJournal(ctx, text)
			if err != nil {
				return err
			}
			return emit(cmd, cfg, analysis, func(w io.Writer) { fmt.Fprint(w, shell.FormatToolResult(analysis)) })
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "journal day (YYYY-MM-DD, default today)")
	return cmd
}

func newMoodCmd(cfg *Config) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "mood MOOD",
		Short: "Record the mood of a day",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			day, err := selectDate(rt, date)
			if err != nil {
				return err
			}
			rt.app.SetMood(ctx, args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Mood for %s: %s\n", day, args[0])
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "day (YYYY-MM-DD, default today)")
	return cmd
}

func newSettingsCmd(cfg *Config) *cobra.Command {
	var name string
	var set []string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the display name and lifestyle answers",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if name != "" || len(set) > 0 {
				choices, err := parseKeyValues(set)
				if err != nil {
					return err
				}
				st := rt.app.State()
				if name == "" {
					name = st.UserName
				}
				merged := make(map[string]string, len(st.UserChoices)+len(choices))
				for k, v := range st.UserChoices {
					merged[k] = v
				}
				for k, v := range choices {
					merged[k] = v
				}
				rt.app.SaveSettings(ctx, name, merged)
			}
			st := rt.app.State()
			view := map[string]any{"user_name": st.UserName, "user_choices": st.UserChoices}
			return emit(cmd, cfg, view, func(w io.Writer) {
				fmt.Fprintf(w, "Name: %s\n", st.UserName)
				for _, q := range rt.app.Catalog().Lifestyle() {
					if v, ok := st.UserChoices[q.ID]; ok {
						fmt.Fprintf(w, "  %s: %s\n", q.Title, v)
					}
				}
			})
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringArrayVar(&set, "set", nil, "lifestyle answer as key=value (repeatable)")
	return cmd
}

func newExportCmd(cfg *Config) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all stored data as JSON",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			name, data, err := rt.app.Export()
			if err != nil {
				return err
			}
			if file == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if file == "" {
				file = name
			}
			if err := os.WriteFile(file, data, 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", file)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "output file, - for stdout (default bioflow_data_<date>.json)")
	return cmd
}

func newResetCmd(cfg *Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all stored data",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all data without --yes")
			}
			if err := rt.app.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All data deleted.")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all data")
	return cmd
}

func newServeCmd(cfg *Config) *cobra.Command {
	var origins []string
	var rateLimit int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and run the daily rollover",
		Args:  cobra.NoArgs,
		RunE: withRuntime(cfg, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			sched := scheduler.NewScheduler()
			defer sched.Stop()
			if err := sched.ScheduleRollover(ctx, rt.app); err != nil {
				return err
			}
			opts := []api.Option{api.WithAddr(cfg.APIAddr), api.WithRateLimit(rateLimit)}
			if len(origins) > 0 {
				opts = append(opts, api.WithAllowedOrigins(origins...))
			}
			return api.NewServer(rt.app, rt.notifier, opts...).Run(ctx)
		}),
	}
	cmd.Flags().StringVar(&cfg.APIAddr, "addr", cfg.APIAddr, "listen address (overrides $BIOFLOW_API_ADDR)")
	cmd.Flags().StringSliceVar(&origins, "allowed-origin", nil, "CORS origin allowed to call the API (repeatable, default any)")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", api.DefaultRequestsPerSec, "requests per second per client IP, 0 disables")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bioflow %s\n", version)
		},
	}
}
