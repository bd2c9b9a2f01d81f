package flow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strings"

	"github.com/BTreeMap/BioFlow/internal/models"
	"github.com/BTreeMap/BioFlow/internal/planclient"
	"golang.org/x/sync/errgroup"
)

// Fixed texts shown while or instead of a definition.
const (
	DefinitionPending     = "Analyzing..."
	DefinitionUnavailable = "Could not load definition."
)

// UploadLabReport sends a lab report for analysis and starts the consultation
// on success.
func (a *App) UploadLabReport(ctx context.Context, filename string, r io.Reader) error {
	hc, err := withLoadingResult(a, PhasesUpload, func() (models.HealthContext, error) {
		return a.plans.InitContext(ctx, a.Token(), filename, r)
	})
	if err != nil {
		slog.Error("App UploadLabReport failed", "filename", filename, "error", err)
		a.notify(models.ToastError, "Upload Failed")
		return fmt.Errorf("failed to upload lab report: %w", err)
	}
	a.notify(models.ToastSuccess, "Analysis Complete")
	return a.applyContext(ctx, hc)
}

// LoadDemo loads the sample health context and starts the consultation.
func (a *App) LoadDemo(ctx context.Context) error {
	hc, err := withLoadingResult(a, PhasesUpload, func() (models.HealthContext, error) {
		return a.plans.LoadDemoData(ctx, a.Token())
	})
	if err != nil {
		slog.Error("App LoadDemo failed", "error", err)
		a.notify(models.ToastError, "Demo Failed")
		return fmt.Errorf("failed to load demo data: %w", err)
	}
	a.notify(models.ToastSuccess, "Demo Loaded Successfully")
	return a.applyContext(ctx, hc)
}

// withLoadingResult runs fn with the loading indicator shown and always stops it.
func withLoadingResult[T any](a *App, phases []string, fn func() (T, error)) (T, error) {
	a.startLoading(phases)
	defer a.stopLoading()
	return fn()
}

func (a *App) applyContext(ctx context.Context, hc models.HealthContext) error {
	hc.ApplyDefaults()
	a.mu.Lock()
	a.healthContext = &hc
	a.healthScore = int(hc.HealthScore)
	a.userName = hc.PatientName
	a.shoppingList = nil
	a.save(ctx, KeyContext, hc)
	a.save(ctx, KeyUserName, a.userName)
	a.mu.Unlock()

	slog.Info("App health context loaded", "patient", hc.PatientName, "issues", len(hc.Issues), "biomarkers", len(hc.Biomarkers))
	return a.consultation.Begin(ctx, hc.Issues, a.catalog.Lifestyle())
}

// ResumeConsultation restarts the consultation from the persisted health
// context, for processes that did not run the upload themselves.
func (a *App) ResumeConsultation(ctx context.Context) error {
	a.mu.Lock()
	if a.healthContext == nil {
		a.mu.Unlock()
		return ErrNoContext
	}
	issues := append([]models.Issue(nil), a.healthContext.Issues...)
	a.mu.Unlock()
	slog.Debug("App ResumeConsultation", "issues", len(issues))
	return a.consultation.Begin(ctx, issues, a.catalog.Lifestyle())
}

// Consultation returns the consultation view.
func (a *App) Consultation() ConsultationSnapshot {
	return a.consultation.Snapshot()
}

// Answer answers the current consultation question with its i-th option.
func (a *App) Answer(ctx context.Context, i int) (ConsultationSnapshot, error) {
	return a.consultation.SelectIndex(ctx, i)
}

// AnswerText answers the current consultation question by option text.
func (a *App) AnswerText(ctx context.Context, text string) (ConsultationSnapshot, error) {
	return a.consultation.SelectText(ctx, text)
}

// Finalize generates the plan for a finished consultation.
func (a *App) Finalize(ctx context.Context, req PlanRequest) error {
	return a.GeneratePlan(ctx, req)
}

// GeneratePlan requests the meal week and the workout plan in parallel. Both
// must succeed for either to replace the current plan.
func (a *App) GeneratePlan(ctx context.Context, req PlanRequest) error {
	return a.generatePlan(ctx, req, PhasesPlan)
}

func (a *App) generatePlan(ctx context.Context, req PlanRequest, phases []string) error {
	a.startLoading(phases)
	defer a.stopLoading()

	a.mu.Lock()
	token := a.token
	lifestyle := req.Lifestyle
	if lifestyle == nil {
		lifestyle = maps.Clone(a.userChoices)
	}
	fitness := req.StrategyName
	if a.selectedFitness != nil && a.selectedFitness.DisplayName() != "" {
		fitness = a.selectedFitness.DisplayName()
	}
	a.mu.Unlock()

	var week []models.DayPlan
	var workout []models.WorkoutDay
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		week, err = a.plans.GenerateWeek(gctx, planclient.WeekRequest{
			Token:           token,
			StrategyName:    req.StrategyName,
			BloodStrategies: req.BloodStrategies,
			Lifestyle:       lifestyle,
		})
		return err
	})
	g.Go(func() error {
		var err error
		workout, err = a.plans.GenerateWorkout(gctx, planclient.WorkoutRequest{
			Token:           token,
			StrategyName:    req.StrategyName,
			FitnessStrategy: fitness,
			Lifestyle:       lifestyle,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("App GeneratePlan failed", "strategy", req.StrategyName, "error", err)
		a.notify(models.ToastError, "Generation Failed")
		return fmt.Errorf("failed to generate plan: %w", err)
	}

	a.mu.Lock()
	now := a.clock.Now()
	a.weekPlan = ShapeWeekPlan(week, now)
	a.workoutPlan = ShapeWorkoutPlan(workout, now)
	a.shoppingList = nil
	a.save(ctx, KeyWeekPlan, a.weekPlan)
	a.save(ctx, KeyWorkoutPlan, a.workoutPlan)
	a.logActivityLocked(ctx, ActivityPlan, req.StrategyName)
	a.mu.Unlock()

	slog.Info("App GeneratePlan succeeded", "strategy", req.StrategyName, "days", len(week), "workoutDays", len(workout))
	a.notify(models.ToastSuccess, "Protocol Optimized")
	return nil
}

// ProposeMealStrategies fetches meal strategy proposals.
func (a *App) ProposeMealStrategies(ctx context.Context) ([]models.Strategy, error) {
	strategies, err := withLoadingResult(a, PhasesMealStrategies, func() ([]models.Strategy, error) {
		return a.plans.ProposeMealStrategies(ctx, a.Token())
	})
	if err != nil {
		slog.Error("App ProposeMealStrategies failed", "error", err)
		a.notify(models.ToastError, "AI Brain Offline")
		return nil, fmt.Errorf("failed to propose meal strategies: %w", err)
	}
	a.mu.Lock()
	a.mealStrategies = strategies
	a.mu.Unlock()
	return append([]models.Strategy{}, strategies...), nil
}

// SelectMealStrategy regenerates the full plan for a proposed meal strategy,
// matched by id or title.
func (a *App) SelectMealStrategy(ctx context.Context, key string) error {
	a.mu.Lock()
	strat, ok := findStrategy(a.mealStrategies, key)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%q: %w", key, ErrUnknownStrategy)
	}
	blood, _ := a.consultation.Answers()
	return a.generatePlan(ctx, PlanRequest{StrategyName: strat.DisplayName(), BloodStrategies: blood}, PhasesMealWeek)
}

// ProposeFitnessStrategies fetches fitness strategy proposals for the saved
// lifestyle answers.
func (a *App) ProposeFitnessStrategies(ctx context.Context) ([]models.Strategy, error) {
	a.mu.Lock()
	lifestyle := maps.Clone(a.userChoices)
	a.mu.Unlock()
	strategies, err := withLoadingResult(a, PhasesFitnessStrategies, func() ([]models.Strategy, error) {
		return a.plans.ProposeFitnessStrategies(ctx, a.Token(), lifestyle)
	})
	if err != nil {
		slog.Error("App ProposeFitnessStrategies failed", "error", err)
		a.notify(models.ToastError, "AI Trainer Offline")
		return nil, fmt.Errorf("failed to propose fitness strategies: %w", err)
	}
	a.mu.Lock()
	a.fitnessStrategies = strategies
	a.mu.Unlock()
	return append([]models.Strategy{}, strategies...), nil
}

// SelectFitnessStrategy remembers the chosen fitness strategy, matched by id or
// title, and regenerates only the workout plan.
func (a *App) SelectFitnessStrategy(ctx context.Context, key string) error {
	a.mu.Lock()
	strat, ok := findStrategy(a.fitnessStrategies, key)
	if ok {
		a.selectedFitness = &strat
	}
	token := a.token
	lifestyle := maps.Clone(a.userChoices)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%q: %w", key, ErrUnknownStrategy)
	}

	fitness := strat.DisplayName()
	if fitness == "" {
		fitness = DefaultFitnessStrategyName
	}
	workout, err := withLoadingResult(a, PhasesWorkout, func() ([]models.WorkoutDay, error) {
		return a.plans.GenerateWorkout(ctx, planclient.WorkoutRequest{
			Token:           token,
			StrategyName:    ReshuffleStrategyName,
			FitnessStrategy: fitness,
			Lifestyle:       lifestyle,
		})
	})
	if err != nil {
		slog.Error("App SelectFitnessStrategy failed", "strategy", fitness, "error", err)
		a.notify(models.ToastError, "Failed to update workout")
		return fmt.Errorf("failed to regenerate workout: %w", err)
	}

	a.mu.Lock()
	a.workoutPlan = ShapeWorkoutPlan(workout, a.clock.Now())
	a.save(ctx, KeyWorkoutPlan, a.workoutPlan)
	a.mu.Unlock()
	a.notify(models.ToastSuccess, "New Training Plan Ready")
	return nil
}

func findStrategy(list []models.Strategy, key string) (models.Strategy, bool) {
	for _, s := range list {
		if key != "" && (s.ID == key || s.DisplayName() == key) {
			return s, true
		}
	}
	return models.Strategy{}, false
}

// Recipe fetches the recipe for a meal title.
func (a *App) Recipe(ctx context.Context, mealTitle string) (models.Recipe, error) {
	r, err := a.plans.GetRecipe(ctx, a.Token(), mealTitle)
	if err != nil {
		slog.Warn("App Recipe failed", "meal", mealTitle, "error", err)
		return models.Recipe{}, fmt.Errorf("failed to fetch recipe: %w", err)
	}
	return r, nil
}

// ShoppingList returns the shopping list, fetching it once per plan.
func (a *App) ShoppingList(ctx context.Context) (models.ShoppingList, error) {
	a.mu.Lock()
	cached := a.shoppingList
	a.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	list, err := a.plans.GenerateShoppingList(ctx, a.Token())
	if err != nil {
		slog.Warn("App ShoppingList failed", "error", err)
		return nil, fmt.Errorf("failed to generate shopping list: %w", err)
	}
	a.mu.Lock()
	a.shoppingList = list
	a.mu.Unlock()
	return list, nil
}

// Chat sends a message to the plan service, streaming chunks to onChunk, and
// falls back to the assistant when the service is unreachable.
func (a *App) Chat(ctx context.Context, message string, onChunk func(string)) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyInput
	}
	a.mu.Lock()
	a.chatHistory = append(a.chatHistory, ChatMessage{Role: "user", Text: message})
	a.mu.Unlock()

	reply, err := a.plans.ChatStream(ctx, a.Token(), message, onChunk)
	if err != nil && a.assistant != nil {
		slog.Warn("App Chat falling back to assistant", "error", err)
		reply, err = a.assistant.Chat(ctx, message)
		if err == nil && onChunk != nil {
			onChunk(reply)
		}
	}
	if err != nil {
		slog.Error("App Chat failed", "error", err)
		a.mu.Lock()
		a.chatHistory = append(a.chatHistory, ChatMessage{Role: "ai", Text: "Connection interrupted."})
		a.mu.Unlock()
		a.notify(models.ToastError, "AI Brain Offline")
		return "", fmt.Errorf("failed to chat: %w", err)
	}

	a.mu.Lock()
	a.chatHistory = append(a.chatHistory, ChatMessage{Role: "ai", Text: reply})
	a.mu.Unlock()
	return reply, nil
}

// Define schedules a definition lookup after a short debounce and returns the
// pending text. deliver receives the definition only if term is still the
// active term when the lookup finishes.
func (a *App) Define(term string, deliver func(definition string)) string {
	a.mu.Lock()
	a.activeTerm = term
	a.mu.Unlock()

	a.timers.After(TimerDefine, DefineDebounce, func() {
		def, err := a.DefineNow(context.Background(), term)
		if err != nil {
			def = DefinitionUnavailable
		}
		a.mu.Lock()
		current := a.activeTerm == term
		a.mu.Unlock()
		if current && deliver != nil {
			deliver(def)
		}
	})
	return DefinitionPending
}

// ClearDefinition abandons the active term and any pending lookup.
func (a *App) ClearDefinition() {
	a.timers.Cancel(TimerDefine)
	a.mu.Lock()
	a.activeTerm = ""
	a.mu.Unlock()
}

// DefineNow looks a term up immediately.
func (a *App) DefineNow(ctx context.Context, term string) (string, error) {
	def, err := a.plans.DefineTerm(ctx, term)
	if err != nil && a.assistant != nil {
		slog.Warn("App DefineNow falling back to assistant", "term", term, "error", err)
		def, err = a.assistant.Define(ctx, term)
	}
	if err != nil {
		return "", fmt.Errorf("failed to define %q: %w", term, err)
	}
	return def, nil
}

// RunTool runs a catalog tool with the given inputs and returns its raw result.
func (a *App) RunTool(ctx context.Context, toolID string, inputs map[string]string) (map[string]any, error) {
	if _, ok := a.catalog.Tool(toolID); !ok {
		return nil, fmt.Errorf("%q: %w", toolID, ErrUnknownTool)
	}
	result, err := a.plans.RunTool(ctx, toolID, inputs)
	if err != nil {
		slog.Error("App RunTool failed", "tool", toolID, "error", err)
		return nil, fmt.Errorf("failed to run tool %s: %w", toolID, err)
	}
	return result, nil
}

// AnalyzeJournal sends an entry for analysis and stores the result under the
// selected date.
func (a *App) AnalyzeJournal(ctx context.Context, entry string) (map[string]any, error) {
	if strings.TrimSpace(entry) == "" {
		return nil, ErrEmptyInput
	}
	a.notify(models.ToastSuccess, "Analyzing Entry... 🧠")
	result, err := a.plans.AnalyzeJournal(ctx, entry)
	if err != nil {
		slog.Error("App AnalyzeJournal failed", "error", err)
		a.notify(models.ToastError, "Analysis Failed")
		return nil, fmt.Errorf("failed to analyze journal: %w", err)
	}
	if result == nil {
		result = map[string]any{}
	}

	a.mu.Lock()
	a.journalAnalysis[a.selectedDate] = result
	a.save(ctx, KeyJournalAnalysis, a.journalAnalysis)
	a.mu.Unlock()
	a.notify(models.ToastSuccess, "Analysis Complete ✨")
	return result, nil
}
