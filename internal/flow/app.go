package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/BTreeMap/BioFlow/internal/catalog"
	"github.com/BTreeMap/BioFlow/internal/models"
	"github.com/BTreeMap/BioFlow/internal/planclient"
	"github.com/goccy/go-json"
)

// PlanService is the remote plan service. *planclient.Client implements it.
type PlanService interface {
	InitContext(ctx context.Context, token, filename string, file io.Reader) (models.HealthContext, error)
	LoadDemoData(ctx context.Context, token string) (models.HealthContext, error)
	ProposeMealStrategies(ctx context.Context, token string) ([]models.Strategy, error)
	ProposeFitnessStrategies(ctx context.Context, token string, lifestyle map[string]string) ([]models.Strategy, error)
	GenerateWeek(ctx context.Context, req planclient.WeekRequest) ([]models.DayPlan, error)
	GenerateWorkout(ctx context.Context, req planclient.WorkoutRequest) ([]models.WorkoutDay, error)
	GetRecipe(ctx context.Context, token, mealTitle string) (models.Recipe, error)
	GenerateShoppingList(ctx context.Context, token string) (models.ShoppingList, error)
	ChatStream(ctx context.Context, token, message string, onChunk func(string)) (string, error)
	DefineTerm(ctx context.Context, term string) (string, error)
	AnalyzeJournal(ctx context.Context, entry string) (map[string]any, error)
	RunTool(ctx context.Context, toolID string, inputs map[string]string) (map[string]any, error)
}

// Notifier shows transient toasts.
type Notifier interface {
	Notify(kind models.ToastKind, message string)
}

// LoadingIndicator shows the rotating loading text.
type LoadingIndicator interface {
	Start(text string)
	Update(text string)
	Stop()
}

// Assistant answers chat and glossary requests when the plan service cannot.
type Assistant interface {
	Chat(ctx context.Context, message string) (string, error)
	Define(ctx context.Context, term string) (string, error)
}

// Tracker and timer settings.
const (
	WaterGoal                = 8
	DefaultMeditationMinutes = 5
	MaxActivityEntries       = 20
	FastingTickInterval      = time.Minute
	CountdownInterval        = time.Second
	LoadingPhaseInterval     = 1800 * time.Millisecond
	DefineDebounce           = 300 * time.Millisecond
)

// Loading phase texts per operation.
var (
	PhasesUpload            = []string{"Scanning PDF...", "Extracting biomarkers...", "Synthesizing health profile..."}
	PhasesPlan              = []string{"Architecting Protocol...", "Balancing Macros...", "Finalizing Schedule..."}
	PhasesMealStrategies    = []string{"Analyzing Metabolism...", "Drafting Strategies..."}
	PhasesMealWeek          = []string{"Architecting Full Week...", "Calibrating Macros..."}
	PhasesFitnessStrategies = []string{"Analyzing Physique...", "Designing Splits..."}
	PhasesWorkout           = []string{"Analyzing Physique...", "Designing Hypertrophy...", "Scheduling Rest..."}
)

var (
	// ErrNoPlanForDate is returned when no plan day matches the requested date.
	ErrNoPlanForDate = errors.New("no plan exists for this date")
	// ErrIndexOutOfRange is returned for a meal or exercise index outside the day.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrUnknownTool is returned for a tool id missing from the catalog.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrEmptyInput is returned when a chat message or journal entry is blank.
	ErrEmptyInput = errors.New("input is empty")
	// ErrUnknownStrategy is returned when a strategy selection matches no proposal.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrNoContext is returned when no health context has been loaded yet.
	ErrNoContext = errors.New("no health context loaded")
)

// ChatMessage is one line of the in-memory chat history.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// State is a copy of the application state for renderers.
type State struct {
	Token               string                        `json:"token"`
	UserName            string                        `json:"user_name"`
	HealthScore         int                           `json:"health_score"`
	BioMetrics          models.BioMetrics             `json:"bio_metrics"`
	BiomarkerGroups     map[string][]models.Biomarker `json:"biomarker_groups"`
	Context             *models.HealthContext         `json:"context,omitempty"`
	UserChoices         map[string]string             `json:"user_choices"`
	Consultation        ConsultationSnapshot          `json:"consultation"`
	WeekPlan            []models.DayPlan              `json:"week_plan"`
	WorkoutPlan         []models.WorkoutDay           `json:"workout_plan"`
	MealStrategies      []models.Strategy             `json:"meal_strategies"`
	FitnessStrategies   []models.Strategy             `json:"fitness_strategies"`
	SelectedFitness     *models.Strategy              `json:"selected_fitness,omitempty"`
	SelectedDate        string                        `json:"selected_date"`
	JournalEntries      map[string]string             `json:"journal_entries"`
	JournalAnalysis     map[string]map[string]any     `json:"journal_analysis"`
	MoodHistory         map[string]string             `json:"mood_history"`
	Achievements        map[string]models.Achievement `json:"achievements"`
	WaterIntake         int                           `json:"water_intake"`
	WaterGoal           int                           `json:"water_goal"`
	WaterHistory        map[string]int                `json:"water_history"`
	FastingStart        int64                         `json:"fasting_start,omitempty"`
	FastingElapsed      string                        `json:"fasting_elapsed"`
	RestActive          bool                          `json:"rest_active"`
	RestRemaining       int                           `json:"rest_remaining"`
	RestTotal           int                           `json:"rest_total"`
	MeditationActive    bool                          `json:"meditation_active"`
	MeditationRemaining int                           `json:"meditation_remaining"`
	MeditationMinutes   int                           `json:"meditation_minutes"`
	UserStreak          int                           `json:"user_streak"`
	LastLoginDate       string                        `json:"last_login_date"`
	WorkoutHistory      map[string]models.SetLog      `json:"workout_history"`
	ActivityLog         []models.ActivityEntry        `json:"activity_log"`
	ChatHistory         []ChatMessage                 `json:"chat_history"`
	Loading             bool                          `json:"loading"`
	LoadingText         string                        `json:"loading_text"`
	ActiveTimers        []TimerInfo                   `json:"active_timers"`
}

// App is the single owner of client state. All mutation goes through its
// methods, which serialise on one mutex; timer callbacks take the same lock.
type App struct {
	mu sync.Mutex

	state        *StateManager
	plans        PlanService
	catalog      *catalog.Catalog
	notifier     Notifier
	loading      LoadingIndicator
	assistant    Assistant
	clock        Clock
	timers       *NamedTimers
	consultation *Consultation

	token             string
	userName          string
	healthScore       int
	healthContext     *models.HealthContext
	userChoices       map[string]string
	weekPlan          []models.DayPlan
	workoutPlan       []models.WorkoutDay
	mealStrategies    []models.Strategy
	fitnessStrategies []models.Strategy
	selectedFitness   *models.Strategy
	shoppingList      models.ShoppingList
	selectedDate      string
	journalEntries    map[string]string
	journalAnalysis   map[string]map[string]any
	moodHistory       map[string]string
	achievements      map[string]models.Achievement
	waterIntake       int
	waterHistory      map[string]int
	fastingStart      int64
	fastingElapsed    string
	restActive        bool
	restRemaining     int
	restTotal         int
	meditationActive  bool
	meditationLeft    int
	meditationMinutes int
	userStreak        int
	lastLoginDate     string
	workoutHistory    map[string]models.SetLog
	activityLog       []models.ActivityEntry
	chatHistory       []ChatMessage
	isLoading         bool
	loadingText       string
	loadingPhase      int
	activeTerm        string
}

// AppOption configures an App.
type AppOption func(*App)

// WithClock sets the clock used for dates and timers.
func WithClock(c Clock) AppOption {
	return func(a *App) { a.clock = c }
}

// WithNotifier sets the toast sink.
func WithNotifier(n Notifier) AppOption {
	return func(a *App) { a.notifier = n }
}

// WithLoadingIndicator sets the loading text sink.
func WithLoadingIndicator(l LoadingIndicator) AppOption {
	return func(a *App) { a.loading = l }
}

// WithAssistant sets the fallback assistant for chat and definitions.
func WithAssistant(as Assistant) AppOption {
	return func(a *App) { a.assistant = as }
}

// WithCatalog overrides the embedded catalog.
func WithCatalog(c *catalog.Catalog) AppOption {
	return func(a *App) { a.catalog = c }
}

type noopNotifier struct{}

func (noopNotifier) Notify(models.ToastKind, string) {}

type noopIndicator struct{}

func (noopIndicator) Start(string)  {}
func (noopIndicator) Update(string) {}
func (noopIndicator) Stop()         {}

// NewApp creates an App with default in-memory state. Call Boot to restore
// persisted state.
func NewApp(sm *StateManager, plans PlanService, opts ...AppOption) *App {
	a := &App{
		state:    sm,
		plans:    plans,
		notifier: noopNotifier{},
		loading:  noopIndicator{},
		clock:    SystemClock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.catalog == nil {
		a.catalog = catalog.MustDefault()
	}
	a.timers = NewNamedTimers(a.clock)
	a.consultation = NewConsultation(a, a.saveUserChoices)
	a.resetMemoryLocked()
	slog.Debug("Creating App")
	return a
}

func (a *App) resetMemoryLocked() {
	a.token = ""
	a.userName = models.DefaultPatientName
	a.healthScore = models.DefaultHealthScore
	a.healthContext = nil
	a.userChoices = map[string]string{}
	a.weekPlan = []models.DayPlan{}
	a.workoutPlan = []models.WorkoutDay{}
	a.mealStrategies = []models.Strategy{}
	a.fitnessStrategies = []models.Strategy{}
	a.selectedFitness = nil
	a.shoppingList = nil
	a.selectedDate = a.today()
	a.journalEntries = map[string]string{}
	a.journalAnalysis = map[string]map[string]any{}
	a.moodHistory = map[string]string{}
	a.achievements = models.DefaultAchievements()
	a.waterIntake = 0
	a.waterHistory = map[string]int{}
	a.fastingStart = 0
	a.fastingElapsed = ""
	a.restActive, a.restRemaining, a.restTotal = false, 0, 0
	a.meditationActive, a.meditationLeft = false, 0
	a.meditationMinutes = DefaultMeditationMinutes
	a.userStreak = 0
	a.lastLoginDate = ""
	a.workoutHistory = map[string]models.SetLog{}
	a.activityLog = []models.ActivityEntry{}
	a.chatHistory = []ChatMessage{}
	a.isLoading, a.loadingText, a.loadingPhase = false, "", 0
	a.activeTerm = ""
}

func (a *App) today() string {
	return a.clock.Now().Format(models.DateLayout)
}

// Now returns the current time of the App clock.
func (a *App) Now() time.Time {
	return a.clock.Now()
}

// Catalog returns the static catalog.
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Token returns the device token.
func (a *App) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

// Boot restores persisted state, migrates legacy values, updates the daily
// streak and re-arms the fasting ticker.
func (a *App) Boot(ctx context.Context) error {
	token, err := a.state.EnsureToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialise token: %w", err)
	}
	if _, err := a.state.Migrate(ctx); err != nil {
		slog.Warn("App Boot migration incomplete", "error", err)
	}

	a.mu.Lock()
	a.resetMemoryLocked()
	a.token = token
	a.loadLocked(ctx)
	choices := maps.Clone(a.userChoices)
	a.rolloverLocked(ctx)
	if a.fastingStart > 0 {
		a.startFastingTickerLocked()
	}
	user, streak, days := a.userName, a.userStreak, len(a.weekPlan)
	a.mu.Unlock()

	a.consultation.SetUserChoices(choices)
	slog.Info("App booted", "user", user, "streak", streak, "weekDays", days)
	return nil
}

func (a *App) loadLocked(ctx context.Context) {
	sm := a.state
	var hc models.HealthContext
	if sm.Load(ctx, KeyContext, &hc) {
		hc.ApplyDefaults()
		a.healthContext = &hc
		a.healthScore = int(hc.HealthScore)
		a.userName = hc.PatientName
	}
	var name string
	if sm.Load(ctx, KeyUserName, &name) && name != "" {
		a.userName = name
	}
	sm.Load(ctx, KeyUserChoices, &a.userChoices)
	sm.Load(ctx, KeyWeekPlan, &a.weekPlan)
	sm.Load(ctx, KeyWorkoutPlan, &a.workoutPlan)
	sm.Load(ctx, KeyJournalEntries, &a.journalEntries)
	sm.Load(ctx, KeyJournalAnalysis, &a.journalAnalysis)
	sm.Load(ctx, KeyMoodHistory, &a.moodHistory)
	sm.Load(ctx, KeyWaterIntake, &a.waterIntake)
	sm.Load(ctx, KeyWaterHistory, &a.waterHistory)
	sm.Load(ctx, KeyFastingStart, &a.fastingStart)
	sm.Load(ctx, KeyUserStreak, &a.userStreak)
	sm.Load(ctx, KeyLastLoginDate, &a.lastLoginDate)
	sm.Load(ctx, KeyWorkoutHistory, &a.workoutHistory)
	sm.Load(ctx, KeyActivityLog, &a.activityLog)

	saved := map[string]models.Achievement{}
	if sm.Load(ctx, KeyAchievements, &saved) {
		for id, ach := range saved {
			a.achievements[id] = ach
		}
	}

	// A null payload decodes into a nil collection.
	if a.userChoices == nil {
		a.userChoices = map[string]string{}
	}
	if a.weekPlan == nil {
		a.weekPlan = []models.DayPlan{}
	}
	if a.workoutPlan == nil {
		a.workoutPlan = []models.WorkoutDay{}
	}
	if a.journalEntries == nil {
		a.journalEntries = map[string]string{}
	}
	if a.journalAnalysis == nil {
		a.journalAnalysis = map[string]map[string]any{}
	}
	if a.moodHistory == nil {
		a.moodHistory = map[string]string{}
	}
	if a.waterHistory == nil {
		a.waterHistory = map[string]int{}
	}
	if a.workoutHistory == nil {
		a.workoutHistory = map[string]models.SetLog{}
	}
	if a.activityLog == nil {
		a.activityLog = []models.ActivityEntry{}
	}
}

// save persists one key and logs a failure. Persistence errors never fail the
// operation that triggered them.
func (a *App) save(ctx context.Context, key DataKey, v any) {
	if err := a.state.Save(ctx, key, v); err != nil {
		slog.Warn("App failed to persist state", "key", key, "error", err)
	}
}

func (a *App) notify(kind models.ToastKind, message string) {
	a.notifier.Notify(kind, message)
}

func (a *App) saveUserChoices(ctx context.Context, choices map[string]string) error {
	a.mu.Lock()
	a.userChoices = maps.Clone(choices)
	a.mu.Unlock()
	return a.state.Save(ctx, KeyUserChoices, choices)
}

// State returns a copy of the current state.
func (a *App) State() State {
	snap := a.consultation.Snapshot()
	timers := a.timers.ListActive()

	a.mu.Lock()
	defer a.mu.Unlock()
	s := State{
		Token:               a.token,
		UserName:            a.userName,
		HealthScore:         a.healthScore,
		UserChoices:         maps.Clone(a.userChoices),
		Consultation:        snap,
		WeekPlan:            cloneWeek(a.weekPlan),
		WorkoutPlan:         cloneWorkout(a.workoutPlan),
		MealStrategies:      append([]models.Strategy{}, a.mealStrategies...),
		FitnessStrategies:   append([]models.Strategy{}, a.fitnessStrategies...),
		SelectedDate:        a.selectedDate,
		JournalEntries:      maps.Clone(a.journalEntries),
		JournalAnalysis:     maps.Clone(a.journalAnalysis),
		MoodHistory:         maps.Clone(a.moodHistory),
		Achievements:        maps.Clone(a.achievements),
		WaterIntake:         a.waterIntake,
		WaterGoal:           WaterGoal,
		WaterHistory:        maps.Clone(a.waterHistory),
		FastingStart:        a.fastingStart,
		FastingElapsed:      a.fastingElapsed,
		RestActive:          a.restActive,
		RestRemaining:       a.restRemaining,
		RestTotal:           a.restTotal,
		MeditationActive:    a.meditationActive,
		MeditationRemaining: a.meditationLeft,
		MeditationMinutes:   a.meditationMinutes,
		UserStreak:          a.userStreak,
		LastLoginDate:       a.lastLoginDate,
		WorkoutHistory:      maps.Clone(a.workoutHistory),
		ActivityLog:         append([]models.ActivityEntry{}, a.activityLog...),
		ChatHistory:         append([]ChatMessage{}, a.chatHistory...),
		Loading:             a.isLoading,
		LoadingText:         a.loadingText,
		ActiveTimers:        timers,
	}
	s.BioMetrics = models.ComputeBioMetrics(a.healthScore, a.userChoices["age"], a.clock.Now())
	var markers []models.Biomarker
	if a.healthContext != nil {
		hc := *a.healthContext
		s.Context = &hc
		markers = hc.Biomarkers
	}
	s.BiomarkerGroups = models.GroupBiomarkers(markers)
	if a.selectedFitness != nil {
		f := *a.selectedFitness
		s.SelectedFitness = &f
	}
	return s
}

func cloneWeek(in []models.DayPlan) []models.DayPlan {
	out := make([]models.DayPlan, len(in))
	for i, d := range in {
		d.Meals = append([]models.Meal{}, d.Meals...)
		out[i] = d
	}
	return out
}

func cloneWorkout(in []models.WorkoutDay) []models.WorkoutDay {
	out := make([]models.WorkoutDay, len(in))
	for i, d := range in {
		d.Exercises = append([]models.Exercise{}, d.Exercises...)
		out[i] = d
	}
	return out
}

// SelectDate sets the calendar date used by journal and mood entries.
func (a *App) SelectDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selectedDate = date
	return nil
}

func (a *App) startLoading(phases []string) {
	if len(phases) == 0 {
		phases = PhasesUpload
	}
	a.mu.Lock()
	a.isLoading = true
	a.loadingPhase = 0
	a.loadingText = phases[0]
	a.mu.Unlock()

	a.loading.Start(phases[0])
	a.timers.Every(TimerLoading, LoadingPhaseInterval, func() {
		a.mu.Lock()
		a.loadingPhase = (a.loadingPhase + 1) % len(phases)
		text := phases[a.loadingPhase]
		a.loadingText = text
		a.mu.Unlock()
		a.loading.Update(text)
	})
}

func (a *App) stopLoading() {
	a.timers.Cancel(TimerLoading)
	a.mu.Lock()
	a.isLoading = false
	a.mu.Unlock()
	a.loading.Stop()
}

// SaveSettings persists the display name and lifestyle choices.
func (a *App) SaveSettings(ctx context.Context, userName string, choices map[string]string) {
	if choices == nil {
		choices = map[string]string{}
	}
	a.mu.Lock()
	if userName != "" {
		a.userName = userName
	}
	a.userChoices = maps.Clone(choices)
	a.save(ctx, KeyUserName, a.userName)
	a.save(ctx, KeyUserChoices, a.userChoices)
	a.mu.Unlock()

	a.consultation.SetUserChoices(choices)
	a.notify(models.ToastSuccess, "Settings Saved")
}

// exportDocument is the layout of an exported data file.
type exportDocument struct {
	Context         *models.HealthContext         `json:"context"`
	WeekPlan        []models.DayPlan              `json:"weekPlan"`
	WorkoutPlan     []models.WorkoutDay           `json:"workoutPlan"`
	WorkoutHistory  map[string]models.SetLog      `json:"workoutHistory"`
	JournalEntries  map[string]string             `json:"journalEntries"`
	JournalAnalysis map[string]map[string]any     `json:"journalAnalysis"`
	UserChoices     map[string]string             `json:"userChoices"`
	Achievements    map[string]models.Achievement `json:"achievements"`
	WaterHistory    map[string]int                `json:"waterHistory"`
	MoodHistory     map[string]string             `json:"moodHistory"`
	ActivityLog     []models.ActivityEntry        `json:"activityLog"`
}

// Export returns the exported data file name and its indented JSON body.
func (a *App) Export() (string, []byte, error) {
	a.mu.Lock()
	doc := exportDocument{
		Context:         a.healthContext,
		WeekPlan:        a.weekPlan,
		WorkoutPlan:     a.workoutPlan,
		WorkoutHistory:  a.workoutHistory,
		JournalEntries:  a.journalEntries,
		JournalAnalysis: a.journalAnalysis,
		UserChoices:     a.userChoices,
		Achievements:    a.achievements,
		WaterHistory:    a.waterHistory,
		MoodHistory:     a.moodHistory,
		ActivityLog:     a.activityLog,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	name := fmt.Sprintf("bioflow_data_%s.json", a.today())
	a.mu.Unlock()
	if err != nil {
		slog.Error("App Export marshal failed", "error", err)
		return "", nil, fmt.Errorf("failed to export data: %w", err)
	}
	a.notify(models.ToastSuccess, "Data Exported 📥")
	return name, data, nil
}

// Reset stops every timer, clears persisted state and starts over with a new
// device token.
func (a *App) Reset(ctx context.Context) error {
	a.timers.Stop()
	if err := a.state.Reset(ctx); err != nil {
		return err
	}
	a.consultation.Reset()
	return a.Boot(ctx)
}

// Close stops all timers.
func (a *App) Close() {
	a.timers.Stop()
}
